package extract

import (
	"context"
	"testing"
	"time"

	"github.com/storygraph/backend/pkg/common"
)

func TestExtractFromNewsDatesAndTypes(t *testing.T) {
	published := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	news := &common.News{
		ID:              "n1",
		Title:           "Border agreement signed",
		Summary:         "The treaty was signed by both governments on 2024-03-05 in Vienna",
		FullText:        "Officials said yesterday the deal remains fragile",
		PublishedAt:     published,
		MentionedActors: []string{"actor_a", "actor_b"},
	}

	events := NewEventExtractor().ExtractFromNews(news, time.Now().UTC())
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}

	// Title sentence has no temporal reference and dates from publication.
	if events[0].Type != common.EventFact || !events[0].EventDate.Equal(published) {
		t.Errorf("title event: type %s, date %v", events[0].Type, events[0].EventDate)
	}
	if events[0].Title != "Border agreement signed" {
		t.Errorf("title event title: %q", events[0].Title)
	}

	// Summary sentence carries an explicit ISO date.
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if events[1].Type != common.EventFact || !events[1].EventDate.Equal(want) {
		t.Errorf("summary event: type %s, date %v, want fact at %v", events[1].Type, events[1].EventDate, want)
	}

	// "said yesterday" reads as an opinion dated the day before publication.
	if events[2].Type != common.EventOpinion {
		t.Errorf("full-text event type: %s", events[2].Type)
	}
	if got := events[2].EventDate; !got.Equal(published.AddDate(0, 0, -1)) {
		t.Errorf("full-text event date: %v", got)
	}

	for i, event := range events {
		if event.NewsID != "n1" {
			t.Errorf("event %d news id: %q", i, event.NewsID)
		}
		if len(event.Actors) != 2 {
			t.Errorf("event %d actors: %v", i, event.Actors)
		}
		if event.Confidence < 0.5 || event.Confidence > 1.0 {
			t.Errorf("event %d confidence out of range: %v", i, event.Confidence)
		}
	}
}

func TestExtractFromNewsFallbackEvent(t *testing.T) {
	published := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	news := &common.News{
		ID:          "n1",
		Title:       "Short note",
		Summary:     "Brief.",
		PublishedAt: published,
	}

	events := NewEventExtractor().ExtractFromNews(news, time.Now().UTC())
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	event := events[0]
	if event.Type != common.EventFact || !event.EventDate.Equal(published) {
		t.Errorf("fallback event: type %s, date %v", event.Type, event.EventDate)
	}
	if event.Title != "Short note" || event.Confidence != 0.6 {
		t.Errorf("fallback event: title %q, confidence %v", event.Title, event.Confidence)
	}
}

func TestExtractFromNewsWithoutPublicationDate(t *testing.T) {
	news := &common.News{
		ID:      "n1",
		Title:   "An undated item with a reasonably long title sentence",
		Summary: "No temporal reference appears anywhere in this text",
	}
	if events := NewEventExtractor().ExtractFromNews(news, time.Now().UTC()); len(events) != 0 {
		t.Fatalf("events without publication date: %d", len(events))
	}
}

func TestMergeDuplicates(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	events := []*common.Event{
		{ID: "e1", Type: common.EventFact, EventDate: date,
			Title: "government signed border treaty vienna", Description: "first report",
			Actors: []string{"actor_a"}, Confidence: 0.7},
		{ID: "e2", Type: common.EventFact, EventDate: date.Add(6 * time.Hour),
			Title: "government signed border treaty vienna today", Description: "second report",
			Actors: []string{"actor_b"}, Confidence: 0.8},
		{ID: "e3", Type: common.EventOpinion, EventDate: date,
			Title: "government signed border treaty vienna", Description: "commentary",
			Actors: []string{"actor_a"}, Confidence: 0.9},
	}

	merged := NewEventExtractor().MergeDuplicates(events, 0.8)
	if len(merged) != 2 {
		t.Fatalf("merged: got %d, want 2", len(merged))
	}

	// The higher-confidence duplicate survives with the actors combined.
	if merged[0].ID != "e2" {
		t.Errorf("surviving event: %s", merged[0].ID)
	}
	if got := merged[0].Actors; len(got) != 2 || got[0] != "actor_a" || got[1] != "actor_b" {
		t.Errorf("combined actors: %v", got)
	}
	if merged[0].Description != "first report | second report" {
		t.Errorf("combined description: %q", merged[0].Description)
	}

	// A different type never merges, whatever the overlap.
	if merged[1].ID != "e3" {
		t.Errorf("kept event: %s", merged[1].ID)
	}
}

func TestExtractForNewsProducesTimeline(t *testing.T) {
	o, g := newTestOrchestrator(t, &fakeExtractor{})
	ctx := context.Background()

	news := &common.News{
		ID:          "n1",
		Title:       "Parliament approved the budget bill",
		Summary:     "The final vote took place on 2024-11-20 after a long debate",
		Source:      "test",
		PublishedAt: time.Date(2024, 11, 21, 9, 0, 0, 0, time.UTC),
	}
	if err := g.AddNews(ctx, news); err != nil {
		t.Fatalf("add news: %v", err)
	}

	if err := o.ExtractForNews(ctx, news); err != nil {
		t.Fatalf("extract: %v", err)
	}

	events := g.NewsEvents("n1")
	if len(events) == 0 {
		t.Fatal("no events produced")
	}
	if got := len(g.AllEvents()); got != len(events) {
		t.Fatalf("listing: got %d events, want %d", got, len(events))
	}

	// Re-extraction refreshes mentions but must not duplicate the timeline.
	if err := o.ExtractForNews(ctx, news); err != nil {
		t.Fatalf("re-extract: %v", err)
	}
	if got := len(g.NewsEvents("n1")); got != len(events) {
		t.Fatalf("events after re-extraction: got %d, want %d", got, len(events))
	}
}
