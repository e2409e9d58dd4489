package resolve

import (
	"context"
	"unicode"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"
)

// PromoteCanonicalScript fixes actors whose canonical name ended up in a
// non-Latin script while a Latin alternate is known, which happens when the
// first mention of an actor came from a non-English source. The longest
// Latin alias becomes canonical and the previous canonical is retained as a
// superseded alias. Returns the number of actors changed.
func (r *Resolver) PromoteCanonicalScript(ctx context.Context) (int, error) {
	promoted := 0
	for _, actor := range r.graph.AllActors() {
		if isLatinName(actor.CanonicalName) {
			continue
		}

		best := ""
		for _, alias := range actor.Aliases {
			if !isLatinName(alias.Name) {
				continue
			}
			if len(alias.Name) > len(best) {
				best = alias.Name
			}
		}
		if best == "" {
			continue
		}

		previous := actor.CanonicalName
		actor.CanonicalName = best
		if !actor.HasAlias(previous) {
			actor.Aliases = append(actor.Aliases, common.Alias{Name: previous, Kind: common.AliasSuperseded})
		} else {
			for i := range actor.Aliases {
				if actor.Aliases[i].Name == previous {
					actor.Aliases[i].Kind = common.AliasSuperseded
				}
			}
		}
		actor.Aliases = removeAlias(actor.Aliases, best)

		if err := r.graph.AddActor(ctx, actor); err != nil {
			return promoted, err
		}
		promoted++
		logger.Debug("[Resolve] Promoted Latin canonical name", "id", actor.ID, "from", previous, "to", best)
	}

	if promoted > 0 {
		r.rebuildIndex()
	}
	return promoted, nil
}

// isLatinName reports whether every letter in the name is Latin. Names with
// no letters at all count as Latin so numeric or symbolic names are left
// alone.
func isLatinName(name string) bool {
	for _, r := range name {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}

func removeAlias(aliases []common.Alias, name string) []common.Alias {
	kept := aliases[:0]
	for _, alias := range aliases {
		if alias.Name == name {
			continue
		}
		kept = append(kept, alias)
	}
	return kept
}
