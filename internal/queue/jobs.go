package queue

import "time"

// IngestJob is a raw news payload published by the API or a feed poller and
// consumed by the worker, which normalizes and registers it.
type IngestJob struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	FullText    string     `json:"full_text,omitempty"`
	URL         string     `json:"url,omitempty"`
	Source      string     `json:"source,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ExtractJob requests mention extraction for a single registered news item.
type ExtractJob struct {
	NewsID string `json:"news_id"`
}

// ClusterJob requests a reclustering pass.
type ClusterJob struct {
	Strategy string `json:"strategy,omitempty"`
}
