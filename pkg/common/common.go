package common

import (
	"strings"
	"time"
)

// ActorType tags the kind of real-world referent an actor represents.
// The set is open: unknown tags coming from extraction are kept as-is.
type ActorType string

const (
	ActorPerson       ActorType = "person"
	ActorCompany      ActorType = "company"
	ActorCountry      ActorType = "country"
	ActorOrganization ActorType = "organization"
	ActorGovernment   ActorType = "government"
	ActorStructure    ActorType = "structure"
	ActorEvent        ActorType = "event"
)

// RelationType describes how two actors are connected.
type RelationType string

const (
	RelationMemberOf     RelationType = "member_of"
	RelationAllyOf       RelationType = "ally_of"
	RelationCompetitorOf RelationType = "competitor_of"
	RelationPartOf       RelationType = "part_of"
	RelationOperatesIn   RelationType = "operates_in"
	RelationRoleIn       RelationType = "role_in"
	RelationRegulates    RelationType = "regulates"
	RelationOwns         RelationType = "owns"

	// Ephemeral relations carry a TTL and expire instead of persisting.
	RelationCriticized RelationType = "criticized"
	RelationSupports   RelationType = "supports"
)

// EventType distinguishes verified facts from stated opinions on a story timeline.
type EventType string

const (
	EventFact    EventType = "fact"
	EventOpinion EventType = "opinion"
)

// AliasKind records where an alternate name came from.
type AliasKind string

const (
	AliasOriginal   AliasKind = "original"
	AliasLemmatized AliasKind = "lemmatized"
	AliasKnowledge  AliasKind = "knowledge_base"
	AliasMerged     AliasKind = "merged"
	// AliasSuperseded marks a former canonical name replaced during
	// canonical-script promotion.
	AliasSuperseded AliasKind = "superseded_canonical"
)

// Alias is one alternate name of an actor, tagged with its provenance.
type Alias struct {
	Name     string    `json:"name"`
	Kind     AliasKind `json:"kind"`
	Language string    `json:"language,omitempty"`
}

// Actor represents a resolved, canonical real-world referent: a person,
// company, country, organization, and so on. Actors are discovered
// independently across many documents and deduplicated afterwards, so an
// actor accumulates alternate names and metadata from every mention that
// resolved to it.
//
// WikidataQID, when set, is the single authoritative identity signal: two
// actors sharing a QID are duplicates and must not both survive a
// deduplication pass.
type Actor struct {
	ID            string         `json:"id"`
	CanonicalName string         `json:"canonical_name"`
	Type          ActorType      `json:"actor_type"`
	Aliases       []Alias        `json:"aliases"`
	WikidataQID   string         `json:"wikidata_qid,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HasAlias reports whether the actor already carries the given name,
// case-insensitively, either as canonical name or as an alias.
func (a *Actor) HasAlias(name string) bool {
	if strings.EqualFold(a.CanonicalName, name) {
		return true
	}
	for _, alias := range a.Aliases {
		if strings.EqualFold(alias.Name, name) {
			return true
		}
	}
	return false
}

// ActorRelation is a directed, typed edge between two actors.
// Ephemeral relations (IsEphemeral) expire after ExpiresAt and are swept
// from the actor graph instead of persisting indefinitely.
type ActorRelation struct {
	ID            string       `json:"id"`
	SourceActorID string       `json:"source_actor_id"`
	TargetActorID string       `json:"target_actor_id"`
	Type          RelationType `json:"relation_type"`
	Weight        float64      `json:"weight"`
	Confidence    float64      `json:"confidence"`
	IsEphemeral   bool         `json:"is_ephemeral"`
	TTLDays       int          `json:"ttl_days,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	Origin        string       `json:"origin"`
}

// Expired reports whether an ephemeral relation has outlived its TTL.
func (r *ActorRelation) Expired(now time.Time) bool {
	return r.IsEphemeral && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// News is a single ingested news item. The title, summary and full text are
// opaque to the graph layers; only the embedding, the mention list and the
// publication timestamp drive clustering and resolution.
type News struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	FullText    string    `json:"full_text,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`

	Embedding       []float32 `json:"embedding,omitempty"`
	MentionedActors []string  `json:"mentioned_actors"`

	StoryID string   `json:"story_id,omitempty"`
	Domains []string `json:"domains,omitempty"`

	// IsPinned marks the item as a core document of its story.
	IsPinned       bool   `json:"is_pinned"`
	EditorialNotes string `json:"editorial_notes,omitempty"`
}

// Text returns the concatenated text used for mention extraction and embedding.
func (n *News) Text() string {
	text := n.Title
	if n.Summary != "" {
		text += "\n" + n.Summary
	}
	if n.FullText != "" {
		text += "\n" + n.FullText
	}
	return text
}

// NewsRelation is an undirected similarity edge between two news items.
// Similarity is the raw embedding similarity; Weight starts equal to it but
// can be edited independently by editorial actions.
type NewsRelation struct {
	SourceNewsID string    `json:"source_news_id"`
	TargetNewsID string    `json:"target_news_id"`
	Similarity   float64   `json:"similarity"`
	Weight       float64   `json:"weight"`
	IsEditorial  bool      `json:"is_editorial"`
	CreatedAt    time.Time `json:"created_at"`
}

// Story is a cluster of topically related news with derived quality metrics.
// Stories are produced by the clustering engine or by editorial merge/split;
// both paths rebuild the member list, the top-actor ranking and the metrics
// from scratch, never copying stale values forward.
type Story struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Bullets []string `json:"bullets,omitempty"`

	NewsIDs     []string `json:"news_ids"`
	CoreNewsIDs []string `json:"core_news_ids"`
	TopActors   []string `json:"top_actors"`
	EventIDs    []string `json:"event_ids,omitempty"`

	Domains       []string `json:"domains,omitempty"`
	PrimaryDomain string   `json:"primary_domain,omitempty"`

	Relevance float64 `json:"relevance"`
	Cohesion  float64 `json:"cohesion"`
	Freshness float64 `json:"freshness"`
	Size      int     `json:"size"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	FirstSeen    time.Time `json:"first_seen"`
	LastActivity time.Time `json:"last_activity"`

	IsActive    bool `json:"is_active"`
	IsEditorial bool `json:"is_editorial"`
}

// Event is a timeline entry extracted from a news item, optionally attached
// to a story.
type Event struct {
	ID          string    `json:"id"`
	NewsID      string    `json:"news_id"`
	StoryID     string    `json:"story_id,omitempty"`
	Type        EventType `json:"event_type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	EventDate   time.Time `json:"event_date"`
	ExtractedAt time.Time `json:"extracted_at"`

	Actors []string `json:"actors,omitempty"`

	SourceTrust float64 `json:"source_trust"`
	Confidence  float64 `json:"confidence"`
}

// Mention is one candidate actor reference produced by the extraction
// collaborator, possibly enriched by the canonicalization collaborator.
// The resolution engine consumes mentions and either attaches them to an
// existing actor or creates a new one.
type Mention struct {
	Name         string    `json:"name"`
	Type         ActorType `json:"type"`
	Confidence   float64   `json:"confidence"`
	OriginalText string    `json:"original_text,omitempty"`
	Language     string    `json:"language,omitempty"`

	// Enrichment from the knowledge-base collaborator; all optional.
	CanonicalName string         `json:"canonical_name,omitempty"`
	WikidataQID   string         `json:"wikidata_qid,omitempty"`
	Aliases       []Alias        `json:"aliases,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// BestName returns the canonical name when enrichment supplied one, else the
// raw extracted name.
func (m *Mention) BestName() string {
	if m.CanonicalName != "" {
		return m.CanonicalName
	}
	return m.Name
}
