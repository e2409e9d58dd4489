package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"
)

// DedupeResult summarizes one deduplication pass.
type DedupeResult struct {
	Groups  int               `json:"groups"`
	Merged  int               `json:"merged"`
	Mapping map[string]string `json:"mapping,omitempty"`
}

// unionFind is a disjoint-set over actor ids. Merge groups fall out as the
// sets remaining after all pairwise unions, which makes transitive chains
// (A dup of B, B dup of C) resolve to a single survivor without any
// chain-following bookkeeping.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(x, y string) {
	px, py := u.find(x), u.find(y)
	if px != py {
		u.parent[px] = py
	}
}

func (u *unionFind) components() [][]string {
	groups := make(map[string][]string)
	for id := range u.parent {
		root := u.find(id)
		groups[root] = append(groups[root], id)
	}

	var result [][]string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Strings(group)
		result = append(result, group)
	}
	sort.Slice(result, func(i, j int) bool { return result[i][0] < result[j][0] })
	return result
}

// Deduplicate merges duplicate actors across the whole graph. Grouping runs
// in three phases of decreasing authority: shared external identifier, then
// name matches against identifier-bearing actors, then plain normalized-name
// equality filtered through the generic-term blocklist. All discovered pairs
// feed one disjoint-set, so merges resolve transitively in a single pass.
//
// After merging, every news mention list is rewritten through the merge
// mapping, the mention graph is rebuilt from scratch and story top-actor
// rankings are refreshed. Running the pass twice with no new mentions leaves
// the actor set unchanged.
func (r *Resolver) Deduplicate(ctx context.Context) (*DedupeResult, error) {
	actors := r.graph.AllActors()
	if len(actors) == 0 {
		return &DedupeResult{Mapping: map[string]string{}}, nil
	}

	uf := newUnionFind()

	// Phase 1: authoritative grouping by external identifier.
	byQID := make(map[string][]string)
	for _, actor := range actors {
		if actor.WikidataQID == "" {
			continue
		}
		byQID[actor.WikidataQID] = append(byQID[actor.WikidataQID], actor.ID)
	}
	for _, ids := range byQID {
		for i := 1; i < len(ids); i++ {
			uf.union(ids[i], ids[0])
		}
	}

	// Name index over identifier-bearing actors, canonical and aliases.
	authoritative := make(map[string]string)
	for _, actor := range actors {
		if actor.WikidataQID == "" {
			continue
		}
		for _, name := range actorNames(actor) {
			key := normalizeName(name)
			if _, taken := authoritative[key]; !taken {
				authoritative[key] = actor.ID
			}
		}
	}

	// Phase 2: fold identifier-less actors into authoritative groups when
	// their canonical name is already known under an identifier.
	for _, actor := range actors {
		if actor.WikidataQID != "" {
			continue
		}
		if ownerID, ok := authoritative[normalizeName(actor.CanonicalName)]; ok {
			uf.union(actor.ID, ownerID)
		}
	}

	// Phase 3: weak grouping of the remainder by normalized canonical name.
	// Generic terms never trigger a merge.
	byName := make(map[string][]string)
	for _, actor := range actors {
		if actor.WikidataQID != "" {
			continue
		}
		key := normalizeName(actor.CanonicalName)
		if key == "" {
			continue
		}
		if _, blocked := r.blocklist[key]; blocked {
			continue
		}
		if _, folded := authoritative[key]; folded {
			continue
		}
		byName[key] = append(byName[key], actor.ID)
	}
	for _, ids := range byName {
		for i := 1; i < len(ids); i++ {
			uf.union(ids[i], ids[0])
		}
	}

	groups := uf.components()
	if len(groups) == 0 {
		logger.Debug("[Dedupe] No duplicate actor groups found", "actors", len(actors))
		return &DedupeResult{Mapping: map[string]string{}}, nil
	}
	logger.Info("[Dedupe] Merging duplicate actor groups", "groups", len(groups))

	mapping := make(map[string]string)
	merged := 0
	for _, group := range groups {
		target, err := r.mergeGroup(ctx, group)
		if err != nil {
			return nil, err
		}
		for _, id := range group {
			if id == target {
				continue
			}
			mapping[id] = target
			merged++
		}
	}

	if err := r.graph.RemapActors(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to remap merged actors: %w", err)
	}
	if err := r.graph.RefreshStoryActors(ctx, r.topActorLimit); err != nil {
		return nil, fmt.Errorf("failed to refresh story actors: %w", err)
	}
	r.rebuildIndex()

	logger.Info("[Dedupe] Deduplication completed", "groups", len(groups), "merged", merged)
	return &DedupeResult{Groups: len(groups), Merged: merged, Mapping: mapping}, nil
}

// mergeGroup folds a duplicate group into a single surviving actor and
// returns the survivor's id. The target is the first member carrying an
// external identifier, else the first member.
func (r *Resolver) mergeGroup(ctx context.Context, group []string) (string, error) {
	members := make([]*common.Actor, 0, len(group))
	for _, id := range group {
		actor, err := r.graph.Actor(id)
		if err != nil {
			return "", err
		}
		members = append(members, actor)
	}

	target := members[0]
	for _, actor := range members {
		if actor.WikidataQID != "" {
			target = actor
			break
		}
	}

	for _, actor := range members {
		if actor.ID == target.ID {
			continue
		}
		if !target.HasAlias(actor.CanonicalName) {
			target.Aliases = append(target.Aliases, common.Alias{Name: actor.CanonicalName, Kind: common.AliasMerged})
		}
		for _, alias := range actor.Aliases {
			if target.HasAlias(alias.Name) {
				continue
			}
			target.Aliases = append(target.Aliases, common.Alias{Name: alias.Name, Kind: common.AliasMerged, Language: alias.Language})
		}
		for k, v := range actor.Metadata {
			if target.Metadata == nil {
				target.Metadata = make(map[string]any)
			}
			if _, exists := target.Metadata[k]; !exists {
				target.Metadata[k] = v
			}
		}
		logger.Debug("[Dedupe] Merged actor", "loser", actor.ID, "loserName", actor.CanonicalName, "survivor", target.ID)
	}

	if err := r.graph.AddActor(ctx, target); err != nil {
		return "", err
	}
	return target.ID, nil
}

// actorNames returns the actor's canonical name plus every alias.
func actorNames(actor *common.Actor) []string {
	names := make([]string, 0, 1+len(actor.Aliases))
	names = append(names, actor.CanonicalName)
	for _, alias := range actor.Aliases {
		names = append(names, alias.Name)
	}
	return names
}
