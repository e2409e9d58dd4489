// Package ingest fetches raw items from configured feeds and normalizes
// them into news documents ready for registration in the graph.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/storygraph/backend/pkg/logger"
)

// RawItem is one un-normalized entry from a feed connector.
type RawItem struct {
	Title       string
	Summary     string
	FullText    string
	URL         string
	Source      string
	Author      string
	PublishedAt *time.Time
}

// RSSConnector fetches items from a set of RSS/Atom feeds.
type RSSConnector struct {
	feedURLs []string
	parser   *gofeed.Parser
}

func NewRSSConnector(feedURLs []string) *RSSConnector {
	return &RSSConnector{
		feedURLs: feedURLs,
		parser:   gofeed.NewParser(),
	}
}

// Fetch pulls every configured feed. A feed that fails to parse is logged
// and skipped; an error is returned only when every feed failed.
func (c *RSSConnector) Fetch(ctx context.Context) ([]RawItem, error) {
	var (
		items  []RawItem
		failed int
	)
	for _, url := range c.feedURLs {
		feed, err := c.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			logger.Warn("[Ingest] Failed to fetch feed", "url", url, "err", err)
			failed++
			continue
		}
		for _, entry := range feed.Items {
			items = append(items, entryToRawItem(feed, entry, url))
		}
	}
	if failed > 0 && failed == len(c.feedURLs) {
		return nil, fmt.Errorf("all %d feeds failed to fetch", failed)
	}
	return items, nil
}

func entryToRawItem(feed *gofeed.Feed, entry *gofeed.Item, url string) RawItem {
	source := feed.Title
	if source == "" {
		source = url
	}

	summary := entry.Description
	if summary == "" && entry.Content != "" {
		summary = entry.Content
	}

	author := ""
	if entry.Author != nil {
		author = entry.Author.Name
	}

	published := entry.PublishedParsed
	if published == nil {
		published = entry.UpdatedParsed
	}

	return RawItem{
		Title:       entry.Title,
		Summary:     summary,
		FullText:    entry.Content,
		URL:         entry.Link,
		Source:      source,
		Author:      author,
		PublishedAt: published,
	}
}
