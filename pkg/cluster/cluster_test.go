package cluster

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/store/memory"
)

func newTestGraph(t *testing.T) *graphstore.Store {
	t.Helper()
	g := graphstore.New(memory.New())
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return g
}

func mustAddNews(t *testing.T, g *graphstore.Store, news *common.News) {
	t.Helper()
	if news.Source == "" {
		news.Source = "test"
	}
	if err := g.AddNews(context.Background(), news); err != nil {
		t.Fatalf("add news %s: %v", news.ID, err)
	}
}

func mustRelate(t *testing.T, g *graphstore.Store, a, b string, weight float64) {
	t.Helper()
	if err := g.AddNewsRelation(context.Background(), a, b, weight, weight, false); err != nil {
		t.Fatalf("relate %s-%s: %v", a, b, err)
	}
}

func TestClusterByComponents(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now()
	// One 5-member pairwise-connected component plus one isolated item.
	connected := []string{"n1", "n2", "n3", "n4", "n5"}
	for _, id := range connected {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now})
	}
	mustAddNews(t, g, &common.News{ID: "lone", Title: "lone", PublishedAt: now})
	for i := 0; i < len(connected); i++ {
		for j := i + 1; j < len(connected); j++ {
			mustRelate(t, g, connected[i], connected[j], 0.8)
		}
	}

	e := NewEngine(g, Config{MinClusterSize: 2})
	stories, err := e.Cluster(context.Background())
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("stories: got %d, want 1", len(stories))
	}
	if stories[0].Size != 5 {
		t.Errorf("size: got %d, want 5", stories[0].Size)
	}

	got := append([]string{}, stories[0].NewsIDs...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, connected) {
		t.Errorf("members: got %v", got)
	}

	lone, err := g.News("lone")
	if err != nil {
		t.Fatal(err)
	}
	if lone.StoryID != "" {
		t.Errorf("isolated item got story assignment %q", lone.StoryID)
	}
}

func TestClusterReplacesNonEditorialStories(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	now := time.Now()
	mustAddNews(t, g, &common.News{ID: "n1", Title: "n1", PublishedAt: now})
	mustAddNews(t, g, &common.News{ID: "n2", Title: "n2", PublishedAt: now})
	mustRelate(t, g, "n1", "n2", 0.9)

	e := NewEngine(g, Config{MinClusterSize: 2})
	first, err := e.Cluster(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Cluster(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatalf("stories: got %d, want 1", len(second))
	}
	if _, err := g.Story(first[0].ID); err == nil {
		t.Errorf("stale story %s survived reclustering", first[0].ID)
	}
	if len(g.AllStories()) != 1 {
		t.Errorf("story count: got %d, want 1", len(g.AllStories()))
	}
}

func TestClusterByEmbeddings(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now()
	// Two tight groups in embedding space plus one outlier.
	vectors := map[string][]float32{
		"a1": {1, 0, 0},
		"a2": {0.99, 0.05, 0},
		"a3": {0.98, 0.1, 0},
		"b1": {0, 1, 0},
		"b2": {0.05, 0.99, 0},
		"b3": {0.1, 0.98, 0},
		"x":  {0.6, 0.6, 0.52},
	}
	for id, vec := range vectors {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now, Embedding: vec})
	}

	e := NewEngine(g, Config{Strategy: StrategyEmbedding, MinClusterSize: 3, Eps: 0.05})
	stories, err := e.Cluster(context.Background())
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("stories: got %d, want 2", len(stories))
	}
	for _, story := range stories {
		if story.Size != 3 {
			t.Errorf("story %s size: got %d, want 3", story.ID, story.Size)
		}
		for _, id := range story.NewsIDs {
			if id == "x" {
				t.Errorf("noise point clustered into %s", story.ID)
			}
		}
	}
}

func TestRecomputeMetricsCohesionScenario(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now()
	for _, id := range []string{"n1", "n2", "n3"} {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now})
	}
	mustRelate(t, g, "n1", "n2", 0.8)
	mustRelate(t, g, "n2", "n3", 0.6)

	e := NewEngine(g, Config{})
	story := &common.Story{ID: "st1", NewsIDs: []string{"n1", "n2", "n3"}, Size: 3, LastActivity: now}
	e.RecomputeMetrics(story)

	if math.Abs(story.Cohesion-0.7) > 1e-9 {
		t.Errorf("cohesion: got %v, want 0.7", story.Cohesion)
	}
	if math.Abs(story.Freshness-1.0) > 1e-3 {
		t.Errorf("freshness: got %v, want ~1.0", story.Freshness)
	}
	wantRelevance := 0.3*0.3 + 0.4*story.Freshness + 0.3*story.Cohesion
	if math.Abs(story.Relevance-wantRelevance) > 1e-9 {
		t.Errorf("relevance: got %v, want %v", story.Relevance, wantRelevance)
	}
}

func TestFreshnessDecay(t *testing.T) {
	g := newTestGraph(t)
	e := NewEngine(g, Config{})

	old := &common.Story{ID: "old", NewsIDs: []string{"n"}, LastActivity: time.Now().Add(-168 * time.Hour)}
	e.RecomputeMetrics(old)
	if old.Freshness > 1e-6 {
		t.Errorf("168h old story freshness: got %v, want 0", old.Freshness)
	}

	ancient := &common.Story{ID: "ancient", NewsIDs: []string{"n"}, LastActivity: time.Now().Add(-1000 * time.Hour)}
	e.RecomputeMetrics(ancient)
	if ancient.Freshness != 0 {
		t.Errorf("ancient story freshness: got %v, want 0", ancient.Freshness)
	}
}

func TestCohesionEdgeCases(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now()
	mustAddNews(t, g, &common.News{ID: "n1", Title: "n1", PublishedAt: now})
	mustAddNews(t, g, &common.News{ID: "n2", Title: "n2", PublishedAt: now})
	e := NewEngine(g, Config{})

	single := &common.Story{ID: "s1", NewsIDs: []string{"n1"}, LastActivity: now}
	e.RecomputeMetrics(single)
	if single.Cohesion != 1.0 {
		t.Errorf("single member cohesion: got %v, want 1.0", single.Cohesion)
	}

	disconnected := &common.Story{ID: "s2", NewsIDs: []string{"n1", "n2"}, LastActivity: now}
	e.RecomputeMetrics(disconnected)
	if disconnected.Cohesion != 0.0 {
		t.Errorf("edgeless pair cohesion: got %v, want 0.0", disconnected.Cohesion)
	}
}

func TestBuildStoryConstruction(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := g.AddActor(ctx, &common.Actor{ID: "actor_merkel", CanonicalName: "Angela Merkel", Type: common.ActorPerson}); err != nil {
		t.Fatal(err)
	}
	mustAddNews(t, g, &common.News{ID: "n2", Title: "second", Summary: "s2", PublishedAt: base.Add(time.Hour), MentionedActors: []string{"actor_merkel"}, Domains: []string{"politics"}})
	mustAddNews(t, g, &common.News{ID: "n1", Title: "first", Summary: "s1", PublishedAt: base, MentionedActors: []string{"actor_merkel"}, Domains: []string{"election campaign"}})

	e := NewEngine(g, Config{})
	story, err := e.BuildStory(ctx, []string{"n2", "n1", "missing"}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if !reflect.DeepEqual(story.NewsIDs, []string{"n1", "n2"}) {
		t.Errorf("members not in publication order: %v", story.NewsIDs)
	}
	// No pinned members, so the earliest item is the core document.
	if !reflect.DeepEqual(story.CoreNewsIDs, []string{"n1"}) {
		t.Errorf("core news: got %v, want [n1]", story.CoreNewsIDs)
	}
	if !reflect.DeepEqual(story.TopActors, []string{"actor_merkel"}) {
		t.Errorf("top actors: %v", story.TopActors)
	}
	if story.Title != "Angela Merkel: first" {
		t.Errorf("title: got %q", story.Title)
	}
	if story.Summary != "s1 | s2" {
		t.Errorf("summary: got %q", story.Summary)
	}
	if !reflect.DeepEqual(story.Bullets, []string{"2026-08-20: first", "2026-08-20: second"}) {
		t.Errorf("bullets: got %v", story.Bullets)
	}
	if story.PrimaryDomain != "politics" {
		t.Errorf("primary domain: got %q", story.PrimaryDomain)
	}
	if !story.FirstSeen.Equal(base) || !story.LastActivity.Equal(base.Add(time.Hour)) {
		t.Errorf("lifecycle stamps: first %v last %v", story.FirstSeen, story.LastActivity)
	}
}

func TestInferPrimaryDomain(t *testing.T) {
	tests := []struct {
		domains []string
		want    string
	}{
		{nil, "other"},
		{[]string{"quantum basket weaving"}, "other"},
		{[]string{"tech news", "ai research"}, "technology"},
		{[]string{"election"}, "politics"},
		// One keyword hit each; politics is the earlier category.
		{[]string{"policy", "market"}, "politics"},
	}
	for _, tt := range tests {
		if got := inferPrimaryDomain(tt.domains); got != tt.want {
			t.Errorf("inferPrimaryDomain(%v): got %q, want %q", tt.domains, got, tt.want)
		}
	}
}

func TestMergeSplitRoundTrip(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a1", "a2", "b1", "b2"} {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now})
	}
	mustRelate(t, g, "a1", "a2", 0.9)
	mustRelate(t, g, "b1", "b2", 0.9)

	e := NewEngine(g, Config{})
	s1, err := e.BuildStory(ctx, []string{"a1", "a2"}, false)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := e.BuildStory(ctx, []string{"b1", "b2"}, false)
	if err != nil {
		t.Fatal(err)
	}

	merged, err := e.MergeStories(ctx, []string{s1.ID, s2.ID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !merged.IsEditorial {
		t.Errorf("merged story not editorial")
	}
	if merged.Size != 4 {
		t.Errorf("merged size: got %d, want 4", merged.Size)
	}
	if _, err := g.Story(s1.ID); err == nil {
		t.Errorf("original story %s survived merge", s1.ID)
	}

	split, err := e.SplitStory(ctx, merged.ID, [][]string{{"a1", "a2"}, {"b1", "b2"}})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(split) != 2 {
		t.Fatalf("split stories: got %d, want 2", len(split))
	}
	var memberSets [][]string
	for _, story := range split {
		if !story.IsEditorial {
			t.Errorf("split story %s not editorial", story.ID)
		}
		members := append([]string{}, story.NewsIDs...)
		sort.Strings(members)
		memberSets = append(memberSets, members)
	}
	sort.Slice(memberSets, func(i, j int) bool { return memberSets[i][0] < memberSets[j][0] })
	if !reflect.DeepEqual(memberSets, [][]string{{"a1", "a2"}, {"b1", "b2"}}) {
		t.Errorf("membership did not round trip: %v", memberSets)
	}
	if _, err := g.Story(merged.ID); err == nil {
		t.Errorf("merged story survived split")
	}
}

// flakyStorage wraps the memory store and fails story saves on demand.
type flakyStorage struct {
	*memory.Store
	failStorySaves bool
}

func (f *flakyStorage) SaveStory(ctx context.Context, story *common.Story) error {
	if f.failStorySaves {
		return errors.New("storage down")
	}
	return f.Store.SaveStory(ctx, story)
}

func TestMergeStoriesKeepsOriginalsOnFailure(t *testing.T) {
	backend := &flakyStorage{Store: memory.New()}
	g := graphstore.New(backend)
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a1", "a2", "b1", "b2"} {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now})
	}

	e := NewEngine(g, Config{})
	s1, err := e.BuildStory(ctx, []string{"a1", "a2"}, false)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := e.BuildStory(ctx, []string{"b1", "b2"}, false)
	if err != nil {
		t.Fatal(err)
	}

	backend.failStorySaves = true
	if _, err := e.MergeStories(ctx, []string{s1.ID, s2.ID}); err == nil {
		t.Fatal("merge succeeded with failing storage")
	}
	for _, id := range []string{s1.ID, s2.ID} {
		if _, err := g.Story(id); err != nil {
			t.Errorf("source story %s lost after failed merge: %v", id, err)
		}
	}
}

func TestSplitStoryKeepsOriginalOnFailure(t *testing.T) {
	backend := &flakyStorage{Store: memory.New()}
	g := graphstore.New(backend)
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"n1", "n2"} {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: now})
	}

	e := NewEngine(g, Config{})
	story, err := e.BuildStory(ctx, []string{"n1", "n2"}, false)
	if err != nil {
		t.Fatal(err)
	}

	backend.failStorySaves = true
	if _, err := e.SplitStory(ctx, story.ID, [][]string{{"n1"}, {"n2"}}); err == nil {
		t.Fatal("split succeeded with failing storage")
	}
	if _, err := g.Story(story.ID); err != nil {
		t.Errorf("original story lost after failed split: %v", err)
	}
}

func TestSplitStorySkipsAllMissingGroups(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	for _, id := range []string{"n1", "n2"} {
		mustAddNews(t, g, &common.News{ID: id, Title: id, PublishedAt: time.Now()})
	}

	e := NewEngine(g, Config{})
	story, err := e.BuildStory(ctx, []string{"n1", "n2"}, false)
	if err != nil {
		t.Fatal(err)
	}

	split, err := e.SplitStory(ctx, story.ID, [][]string{{"n1", "n2"}, {"missing"}})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(split) != 1 {
		t.Fatalf("split stories: got %d, want 1", len(split))
	}
	if _, err := g.Story(story.ID); err == nil {
		t.Error("original story survived split")
	}
}

func TestMergeStoriesNeedsTwoExisting(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	mustAddNews(t, g, &common.News{ID: "n1", Title: "n1", PublishedAt: time.Now()})
	e := NewEngine(g, Config{})
	s1, err := e.BuildStory(ctx, []string{"n1"}, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.MergeStories(ctx, []string{s1.ID, "missing"}); err == nil {
		t.Fatal("merge with one existing story succeeded")
	}
}

func TestSortStories(t *testing.T) {
	stories := []*common.Story{
		{ID: "a", Relevance: 0.2, Freshness: 0.9, Size: 1},
		{ID: "b", Relevance: 0.8, Freshness: 0.1, Size: 3},
		{ID: "c", Relevance: 0.5, Freshness: 0.5, Size: 2},
	}

	SortStories(stories, "relevance")
	if stories[0].ID != "b" || stories[2].ID != "a" {
		t.Errorf("relevance order: %s %s %s", stories[0].ID, stories[1].ID, stories[2].ID)
	}
	SortStories(stories, "freshness")
	if stories[0].ID != "a" {
		t.Errorf("freshness order starts with %s", stories[0].ID)
	}
	SortStories(stories, "size")
	if stories[0].ID != "b" {
		t.Errorf("size order starts with %s", stories[0].ID)
	}
}
