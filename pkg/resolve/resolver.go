package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
)

// Canonicalizer enriches a raw mention with a canonical name, a stable
// external identifier and known alternate names from a knowledge base.
// Implementations return (nil, nil) when the name is unknown.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, name string, typeHint common.ActorType, language string) (*common.Mention, error)
}

// DefaultBlocklist holds generic terms that must never drive a name-only
// merge. Matching is done on the normalized form.
var DefaultBlocklist = []string{
	"negotiations",
	"summit",
	"conference",
	"meeting",
	"election",
	"elections",
	"government",
	"parliament",
	"ministry",
	"statement",
	"report",
	"crisis",
	"war",
	"sanctions",
	"economy",
	"agreement",
}

const defaultTopActorLimit = 10

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	// Canonicalizer is optional; without one, mentions resolve on their
	// raw names only.
	Canonicalizer Canonicalizer
	// Blocklist overrides DefaultBlocklist when non-nil.
	Blocklist []string
	// TopActorLimit bounds per-story actor rankings refreshed after a
	// deduplication pass.
	TopActorLimit int
}

// Resolver turns noisy candidate mentions into canonical actors and runs the
// batch deduplication pass. It is not safe for concurrent use; the
// orchestrator serializes all mutation through a single background run.
type Resolver struct {
	graph         *graphstore.Store
	canonicalizer Canonicalizer
	blocklist     map[string]struct{}
	topActorLimit int

	// nameIndex maps normalized names (canonical and aliases) to actor ids.
	// Updated incrementally so later mentions in a pass see earlier
	// resolutions, and rebuilt wholesale after merges.
	nameIndex map[string]string
	qidIndex  map[string]string
}

func NewResolver(graph *graphstore.Store, opts Options) *Resolver {
	blocklist := opts.Blocklist
	if blocklist == nil {
		blocklist = DefaultBlocklist
	}
	blocked := make(map[string]struct{}, len(blocklist))
	for _, term := range blocklist {
		blocked[normalizeName(term)] = struct{}{}
	}

	limit := opts.TopActorLimit
	if limit <= 0 {
		limit = defaultTopActorLimit
	}

	r := &Resolver{
		graph:         graph,
		canonicalizer: opts.Canonicalizer,
		blocklist:     blocked,
		topActorLimit: limit,
	}
	r.rebuildIndex()
	return r
}

// normalizeName produces the lookup key used by the known-name index and by
// weak name grouping.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Resolver) rebuildIndex() {
	r.nameIndex = make(map[string]string)
	r.qidIndex = make(map[string]string)
	for _, actor := range r.graph.AllActors() {
		r.indexActor(actor)
	}
}

func (r *Resolver) indexActor(actor *common.Actor) {
	if key := normalizeName(actor.CanonicalName); key != "" {
		if _, taken := r.nameIndex[key]; !taken {
			r.nameIndex[key] = actor.ID
		}
	}
	for _, alias := range actor.Aliases {
		key := normalizeName(alias.Name)
		if key == "" {
			continue
		}
		if _, taken := r.nameIndex[key]; !taken {
			r.nameIndex[key] = actor.ID
		}
	}
	if actor.WikidataQID != "" {
		if _, taken := r.qidIndex[actor.WikidataQID]; !taken {
			r.qidIndex[actor.WikidataQID] = actor.ID
		}
	}
}

// ResolveMention attaches a candidate mention to an existing actor or creates
// a new one. The external identifier is the strongest signal, then the
// known-name index; a miss on both creates a fresh actor.
func (r *Resolver) ResolveMention(ctx context.Context, mention *common.Mention) (*common.Actor, error) {
	if strings.TrimSpace(mention.Name) == "" {
		return nil, fmt.Errorf("mention has no name")
	}

	enriched := r.enrich(ctx, mention)

	// Identifier attach.
	if enriched.WikidataQID != "" {
		if actorID, ok := r.qidIndex[enriched.WikidataQID]; ok {
			actor, err := r.graph.Actor(actorID)
			if err != nil {
				return nil, err
			}
			if err := r.attach(ctx, actor, enriched); err != nil {
				return nil, err
			}
			return actor, nil
		}
	}

	// Known-name attach.
	if actorID, ok := r.nameIndex[normalizeName(enriched.BestName())]; ok {
		actor, err := r.graph.Actor(actorID)
		if err != nil {
			return nil, err
		}
		if err := r.attach(ctx, actor, enriched); err != nil {
			return nil, err
		}
		return actor, nil
	}

	return r.create(ctx, enriched)
}

// enrich consults the canonicalization collaborator. Failures degrade to the
// raw mention rather than propagating.
func (r *Resolver) enrich(ctx context.Context, mention *common.Mention) *common.Mention {
	if r.canonicalizer == nil || mention.WikidataQID != "" {
		return mention
	}
	known, err := r.canonicalizer.Canonicalize(ctx, mention.Name, mention.Type, mention.Language)
	if err != nil {
		logger.Debug("[Resolve] Canonicalization failed, using raw name", "name", mention.Name, "error", err)
		return mention
	}
	if known == nil {
		return mention
	}

	merged := *mention
	merged.CanonicalName = known.CanonicalName
	merged.WikidataQID = known.WikidataQID
	merged.Aliases = append(append([]common.Alias{}, mention.Aliases...), known.Aliases...)
	if len(known.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(known.Metadata))
		}
		for k, v := range known.Metadata {
			merged.Metadata[k] = v
		}
	}
	return &merged
}

// attach folds a mention's names and metadata into an existing actor.
// The mention's canonical name is promoted over the actor's current one when
// the mention carries the knowledge-base form and the actor was created from
// a raw name only.
func (r *Resolver) attach(ctx context.Context, actor *common.Actor, mention *common.Mention) error {
	changed := false

	if mention.WikidataQID != "" && actor.WikidataQID == "" {
		actor.WikidataQID = mention.WikidataQID
		changed = true
	}
	if mention.CanonicalName != "" && !strings.EqualFold(actor.CanonicalName, mention.CanonicalName) &&
		(actor.WikidataQID == "" || actor.WikidataQID == mention.WikidataQID) {
		if !actor.HasAlias(actor.CanonicalName) {
			actor.Aliases = append(actor.Aliases, common.Alias{Name: actor.CanonicalName, Kind: common.AliasOriginal})
		}
		actor.CanonicalName = mention.CanonicalName
		changed = true
	}

	for _, name := range mentionNames(mention) {
		if actor.HasAlias(name) {
			continue
		}
		kind := common.AliasOriginal
		if mention.CanonicalName != "" && !strings.EqualFold(name, mention.OriginalText) {
			kind = common.AliasKnowledge
		}
		actor.Aliases = append(actor.Aliases, common.Alias{Name: name, Kind: kind, Language: mention.Language})
		changed = true
	}

	if len(mention.Metadata) > 0 {
		if actor.Metadata == nil {
			actor.Metadata = make(map[string]any, len(mention.Metadata))
		}
		for k, v := range mention.Metadata {
			if _, exists := actor.Metadata[k]; !exists {
				actor.Metadata[k] = v
				changed = true
			}
		}
	}

	if changed {
		if err := r.graph.AddActor(ctx, actor); err != nil {
			return err
		}
	}
	r.indexActor(actor)
	return nil
}

func (r *Resolver) create(ctx context.Context, mention *common.Mention) (*common.Actor, error) {
	actor := &common.Actor{
		ID:            util.NewActorID(),
		CanonicalName: mention.BestName(),
		Type:          mention.Type,
		WikidataQID:   mention.WikidataQID,
		Metadata:      mention.Metadata,
	}
	for _, name := range mentionNames(mention) {
		if strings.EqualFold(name, actor.CanonicalName) {
			continue
		}
		kind := common.AliasKnowledge
		if strings.EqualFold(name, mention.OriginalText) || strings.EqualFold(name, mention.Name) {
			kind = common.AliasOriginal
		}
		actor.Aliases = append(actor.Aliases, common.Alias{Name: name, Kind: kind, Language: mention.Language})
	}

	if err := r.graph.AddActor(ctx, actor); err != nil {
		return nil, err
	}
	r.indexActor(actor)
	logger.Debug("[Resolve] Created actor", "id", actor.ID, "name", actor.CanonicalName, "qid", actor.WikidataQID)
	return actor, nil
}

// mentionNames returns every distinct name a mention carries, raw and known.
func mentionNames(mention *common.Mention) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := normalizeName(name)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	add(mention.Name)
	add(mention.OriginalText)
	add(mention.CanonicalName)
	for _, alias := range mention.Aliases {
		add(alias.Name)
	}
	return names
}
