package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
)

// domainCategories lists the known story categories in scoring priority
// order. Ties between categories go to the earlier entry.
var domainCategories = []struct {
	name     string
	keywords []string
}{
	{"politics", []string{"politics", "government", "election", "policy", "democracy", "international", "regulation"}},
	{"economics", []string{"economy", "economics", "business", "finance", "market", "trade", "mergers"}},
	{"technology", []string{"technology", "tech", "ai", "software", "digital"}},
	{"military", []string{"military", "defense", "war", "army", "conflict"}},
	{"health", []string{"health", "medicine", "covid", "disease", "hospital"}},
	{"culture", []string{"culture", "art", "music", "film", "entertainment"}},
	{"environment", []string{"environment", "climate", "energy", "pollution"}},
	{"sports", []string{"sports", "football", "olympics", "championship"}},
}

const domainOther = "other"

// ErrNoMembers reports a story build whose member ids all turned out missing.
var ErrNoMembers = errors.New("story has no existing members")

// BuildStory assembles a brand-new story from a set of member news ids,
// computes its metrics and stores it. Missing member ids are skipped rather
// than failing the whole build.
func (e *Engine) BuildStory(ctx context.Context, newsIDs []string, editorial bool) (*common.Story, error) {
	members := make([]*common.News, 0, len(newsIDs))
	for _, id := range newsIDs {
		news, err := e.graph.News(id)
		if err != nil {
			continue
		}
		members = append(members, news)
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].PublishedAt.Before(members[j].PublishedAt)
	})

	memberIDs := make([]string, len(members))
	for i, news := range members {
		memberIDs[i] = news.ID
	}

	topActors := e.graph.TopActors(memberIDs, e.cfg.TopActorLimit)

	coreIDs := make([]string, 0, 1)
	for _, news := range members {
		if news.IsPinned {
			coreIDs = append(coreIDs, news.ID)
		}
	}
	if len(coreIDs) == 0 {
		coreIDs = append(coreIDs, members[0].ID)
	}

	domains := collectDomains(members)
	now := time.Now().UTC()
	story := &common.Story{
		ID:            util.NewStoryID(),
		Title:         e.storyTitle(members, topActors),
		Summary:       storySummary(members),
		Bullets:       storyBullets(members),
		NewsIDs:       memberIDs,
		CoreNewsIDs:   coreIDs,
		TopActors:     topActors,
		Domains:       domains,
		PrimaryDomain: inferPrimaryDomain(domains),
		Size:          len(memberIDs),
		CreatedAt:     now,
		FirstSeen:     members[0].PublishedAt,
		LastActivity:  members[len(members)-1].PublishedAt,
		IsActive:      true,
		IsEditorial:   editorial,
	}
	e.RecomputeMetrics(story)

	if err := e.graph.AddStory(ctx, story); err != nil {
		return nil, err
	}
	return story, nil
}

// RecomputeMetrics refreshes a story's cohesion, freshness and relevance
// from the current graph. Must run again whenever membership changes.
func (e *Engine) RecomputeMetrics(story *common.Story) {
	story.Cohesion = e.graph.Cohesion(story.NewsIDs)

	hours := time.Now().UTC().Sub(story.LastActivity).Hours()
	story.Freshness = 1.0 - hours/168.0
	if story.Freshness < 0 {
		story.Freshness = 0
	}
	if story.Freshness > 1 {
		story.Freshness = 1
	}

	sizeScore := float64(story.Size) / 10.0
	if sizeScore > 1 {
		sizeScore = 1
	}
	story.Relevance = 0.3*sizeScore + 0.4*story.Freshness + 0.3*story.Cohesion
	story.Size = len(story.NewsIDs)
	story.UpdatedAt = time.Now().UTC()
}

// RecomputeAllMetrics refreshes metrics for every story and persists changes.
func (e *Engine) RecomputeAllMetrics(ctx context.Context) error {
	for _, story := range e.graph.AllStories() {
		e.RecomputeMetrics(story)
		if err := e.graph.AddStory(ctx, story); err != nil {
			return err
		}
	}
	return nil
}

// MergeStories unions the members of two or more stories into one brand-new
// editorially locked story with freshly built metrics, never copies. The
// merged story is persisted before the originals are removed, so a storage
// failure mid-way never loses the source stories.
func (e *Engine) MergeStories(ctx context.Context, storyIDs []string) (*common.Story, error) {
	var memberIDs []string
	seen := make(map[string]struct{})
	found := 0
	for _, id := range storyIDs {
		story, err := e.graph.Story(id)
		if err != nil {
			continue
		}
		found++
		for _, newsID := range story.NewsIDs {
			if _, dup := seen[newsID]; dup {
				continue
			}
			seen[newsID] = struct{}{}
			memberIDs = append(memberIDs, newsID)
		}
	}
	if found < 2 {
		return nil, fmt.Errorf("merge needs at least two existing stories, got %d: %w", found, graphstore.ErrNotFound)
	}

	// Building the replacement reassigns every member to it, so removing the
	// originals afterwards only deletes the emptied story records.
	merged, err := e.BuildStory(ctx, memberIDs, true)
	if err != nil {
		return nil, err
	}

	for _, id := range storyIDs {
		if err := e.graph.RemoveStory(ctx, id); err != nil && !isNotFound(err) {
			return merged, err
		}
	}
	return merged, nil
}

// SplitStory replaces a story with one independent editorially locked story
// per group of member ids. A group may hold a single news item. Groups whose
// ids all turn out missing are skipped; any other build failure is reported
// and leaves the original story in place.
func (e *Engine) SplitStory(ctx context.Context, storyID string, groups [][]string) ([]*common.Story, error) {
	if _, err := e.graph.Story(storyID); err != nil {
		return nil, err
	}

	var stories []*common.Story
	var errs []error
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		story, err := e.BuildStory(ctx, group, true)
		if err != nil {
			if errors.Is(err, ErrNoMembers) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		stories = append(stories, story)
	}
	if err := errors.Join(errs...); err != nil {
		return stories, err
	}

	if err := e.graph.RemoveStory(ctx, storyID); err != nil && !isNotFound(err) {
		return stories, err
	}
	return stories, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, graphstore.ErrNotFound)
}

func (e *Engine) storyTitle(members []*common.News, topActors []string) string {
	if len(members) == 0 {
		return "Untitled Story"
	}
	title := members[0].Title
	if len(topActors) > 0 {
		if actor, err := e.graph.Actor(topActors[0]); err == nil {
			if !strings.Contains(strings.ToLower(title), strings.ToLower(actor.CanonicalName)) {
				return actor.CanonicalName + ": " + title
			}
		}
	}
	return title
}

func storySummary(members []*common.News) string {
	var parts []string
	for _, news := range members {
		if len(parts) == 3 {
			break
		}
		if news.Summary != "" {
			parts = append(parts, news.Summary)
		}
	}
	return strings.Join(parts, " | ")
}

func storyBullets(members []*common.News) []string {
	var bullets []string
	for _, news := range members {
		if len(bullets) == 5 {
			break
		}
		bullets = append(bullets, news.PublishedAt.Format("2006-01-02")+": "+news.Title)
	}
	return bullets
}

func collectDomains(members []*common.News) []string {
	seen := make(map[string]struct{})
	var domains []string
	for _, news := range members {
		for _, domain := range news.Domains {
			key := strings.ToLower(domain)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			domains = append(domains, domain)
		}
	}
	sort.Strings(domains)
	return domains
}

// inferPrimaryDomain scores each category by keyword overlap with the domain
// list and returns the best match, falling back to "other".
func inferPrimaryDomain(domains []string) string {
	if len(domains) == 0 {
		return domainOther
	}

	best := domainOther
	bestScore := 0
	for _, category := range domainCategories {
		score := 0
		for _, domain := range domains {
			lower := strings.ToLower(domain)
			for _, keyword := range category.keywords {
				if strings.Contains(lower, keyword) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = category.name
		}
	}
	return best
}

// SortStories orders stories for listing. Supported keys are "relevance"
// (default), "freshness" and "size"; unknown keys fall back to relevance.
// All orderings are descending with story id as the final tie-break.
func SortStories(stories []*common.Story, by string) {
	key := func(s *common.Story) float64 {
		switch by {
		case "freshness":
			return s.Freshness
		case "size":
			return float64(s.Size)
		default:
			return s.Relevance
		}
	}
	sort.SliceStable(stories, func(i, j int) bool {
		ki, kj := key(stories[i]), key(stories[j])
		if ki != kj {
			return ki > kj
		}
		return stories[i].ID < stories[j].ID
	})
}
