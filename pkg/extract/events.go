package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/common"
)

// defaultSourceTrust is assumed for sources without an explicit trust score.
const defaultSourceTrust = 0.7

// eventMergeThreshold is the title word-overlap ratio above which two
// same-day events of the same type collapse into one.
const eventMergeThreshold = 0.8

var opinionKeywords = []string{
	"считает", "полагает", "заявил", "утверждает", "thinks", "believes",
	"claims", "stated", "said", "announced", "мнение", "opinion",
	"по мнению", "according to", "criticized", "раскритиковал",
	"praised", "похвалил",
}

var factKeywords = []string{
	"произошло", "случилось", "occurred", "happened", "состоялся",
	"took place", "was held", "был проведен", "signed", "подписан",
	"launched", "запущен", "opened", "открыт",
}

var temporalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:в|on)\s+(\d{1,2}\s+(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря))`),
	regexp.MustCompile(`(?i)(?:в|on)\s+(\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December))`),
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
	regexp.MustCompile(`(?i)(yesterday|вчера)`),
	regexp.MustCompile(`(?i)(today|сегодня)`),
	regexp.MustCompile(`(?i)(tomorrow|завтра)`),
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// EventExtractor derives timeline events from news text with sentence-level
// heuristics: temporal references select sentences, keyword scoring
// classifies each as fact or opinion.
type EventExtractor struct{}

func NewEventExtractor() *EventExtractor {
	return &EventExtractor{}
}

// ExtractFromNews returns the timeline events found in one news item. Each
// qualifying sentence yields an event dated from its temporal reference,
// falling back to the publication date; when no sentence qualifies, a single
// fact event on the publication date stands in so the item still appears on
// its story timeline.
func (e *EventExtractor) ExtractFromNews(news *common.News, now time.Time) []*common.Event {
	var events []*common.Event
	text := news.Title + ". " + news.Summary + ". " + news.FullText

	for _, sentence := range splitSentences(text) {
		eventDate, ok := extractDate(sentence, news.PublishedAt)
		if !ok {
			continue
		}
		eventType := classifyEventType(sentence)
		events = append(events, &common.Event{
			ID:          util.NewEventID(),
			NewsID:      news.ID,
			StoryID:     news.StoryID,
			Type:        eventType,
			Title:       truncateRunes(sentence, 80),
			Description: sentence,
			EventDate:   eventDate,
			ExtractedAt: now,
			Actors:      news.MentionedActors,
			SourceTrust: defaultSourceTrust,
			Confidence:  extractionConfidence(sentence),
		})
	}

	if len(events) == 0 && !news.PublishedAt.IsZero() {
		description := news.Summary
		if description == "" {
			description = news.FullText
		}
		events = append(events, &common.Event{
			ID:          util.NewEventID(),
			NewsID:      news.ID,
			StoryID:     news.StoryID,
			Type:        common.EventFact,
			Title:       truncateRunes(news.Title, 80),
			Description: truncateRunes(description, 200),
			EventDate:   news.PublishedAt,
			ExtractedAt: now,
			Actors:      news.MentionedActors,
			SourceTrust: defaultSourceTrust,
			Confidence:  0.6,
		})
	}

	return events
}

// MergeDuplicates collapses events of the same type that fall within a day
// of each other and share most of their title words. The event with the
// highest confidence survives, with actors combined across the group.
func (e *EventExtractor) MergeDuplicates(events []*common.Event, threshold float64) []*common.Event {
	if len(events) < 2 {
		return events
	}

	var unique []*common.Event
	used := make(map[int]bool, len(events))

	for i, event := range events {
		if used[i] {
			continue
		}
		group := []*common.Event{event}
		for j := i + 1; j < len(events); j++ {
			if used[j] {
				continue
			}
			if eventsSimilar(event, events[j], threshold) {
				group = append(group, events[j])
				used[j] = true
			}
		}
		used[i] = true

		if len(group) > 1 {
			unique = append(unique, mergeEvents(group))
		} else {
			unique = append(unique, event)
		}
	}

	return unique
}

func splitSentences(text string) []string {
	var sentences []string
	for _, part := range sentenceBoundary.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > 20 {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// extractDate finds the date a sentence refers to. Relative markers resolve
// against the publication date, which also stands in for sentences without
// any temporal reference.
func extractDate(sentence string, published time.Time) (time.Time, bool) {
	for _, pattern := range temporalPatterns {
		match := pattern.FindStringSubmatch(sentence)
		if match == nil {
			continue
		}
		ref := strings.ToLower(match[1])

		switch ref {
		case "today", "сегодня":
			return published, !published.IsZero()
		case "yesterday", "вчера":
			return published.AddDate(0, 0, -1), !published.IsZero()
		case "tomorrow", "завтра":
			return published.AddDate(0, 0, 1), !published.IsZero()
		}

		if t, err := time.Parse("2006-01-02", match[1]); err == nil {
			return t, true
		}
		if t, err := time.Parse("2/1/2006", match[1]); err == nil {
			return t, true
		}
		// Month-name references carry no year; date them by the
		// publication day.
		return published, !published.IsZero()
	}
	return published, !published.IsZero()
}

func classifyEventType(sentence string) common.EventType {
	lower := strings.ToLower(sentence)

	opinionScore := 0
	for _, kw := range opinionKeywords {
		if strings.Contains(lower, kw) {
			opinionScore++
		}
	}
	factScore := 0
	for _, kw := range factKeywords {
		if strings.Contains(lower, kw) {
			factScore++
		}
	}
	if strings.ContainsAny(sentence, `"«`) || strings.Contains(lower, "said") {
		opinionScore += 2
	}

	if opinionScore > factScore {
		return common.EventOpinion
	}
	return common.EventFact
}

func extractionConfidence(sentence string) float64 {
	confidence := 0.7
	lower := strings.ToLower(sentence)
	for _, marker := range []string{"в ", "on ", "at ", "2024", "2025"} {
		if strings.Contains(lower, marker) {
			confidence += 0.1
			break
		}
	}
	if utf8.RuneCountInString(sentence) < 30 {
		confidence -= 0.1
	}
	if confidence < 0.5 {
		confidence = 0.5
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func eventsSimilar(a, b *common.Event, threshold float64) bool {
	if a.Type != b.Type {
		return false
	}
	diff := a.EventDate.Sub(b.EventDate)
	if diff < 0 {
		diff = -diff
	}
	if diff > 24*time.Hour {
		return false
	}

	wordsA := wordSet(a.Title)
	wordsB := wordSet(b.Title)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}
	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection)/float64(union) >= threshold
}

func mergeEvents(group []*common.Event) *common.Event {
	best := group[0]
	for _, event := range group[1:] {
		if event.Confidence > best.Confidence {
			best = event
		}
	}

	actorSet := make(map[string]bool)
	for _, event := range group {
		for _, actor := range event.Actors {
			actorSet[actor] = true
		}
	}
	actors := make([]string, 0, len(actorSet))
	for actor := range actorSet {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	best.Actors = actors

	descriptions := make([]string, 0, 3)
	for _, event := range group {
		if len(descriptions) == 3 {
			break
		}
		descriptions = append(descriptions, event.Description)
	}
	best.Description = strings.Join(descriptions, " | ")

	return best
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

func truncateRunes(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
