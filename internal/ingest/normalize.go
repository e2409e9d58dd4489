package ingest

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/common"
)

const maxSummaryLength = 500

// Normalize converts a raw feed item into a news document with a fresh id.
// Missing fields get the same defaults the rest of the system assumes:
// "Untitled" titles, "unknown" sources and a now() publication time.
func Normalize(raw RawItem, now time.Time) *common.News {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = "Untitled"
	}

	source := raw.Source
	if source == "" {
		source = "unknown"
	}

	publishedAt := now
	if raw.PublishedAt != nil {
		publishedAt = *raw.PublishedAt
	}

	return &common.News{
		ID:              util.NewNewsID(),
		Title:           title,
		Summary:         truncate(strings.TrimSpace(raw.Summary), maxSummaryLength),
		FullText:        raw.FullText,
		URL:             raw.URL,
		Source:          source,
		Author:          raw.Author,
		PublishedAt:     publishedAt,
		CreatedAt:       now,
		MentionedActors: []string{},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	// Do not split a multi-byte rune at the boundary.
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
