package resolve

import (
	"context"
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

func mustAddActor(t *testing.T, g *graphstore.Store, actor *common.Actor) {
	t.Helper()
	if err := g.AddActor(context.Background(), actor); err != nil {
		t.Fatalf("add actor %s: %v", actor.ID, err)
	}
}

func mustAddNews(t *testing.T, g *graphstore.Store, id string, actors ...string) {
	t.Helper()
	err := g.AddNews(context.Background(), &common.News{
		ID:              id,
		Title:           "title " + id,
		Source:          "test",
		PublishedAt:     time.Now(),
		MentionedActors: actors,
	})
	if err != nil {
		t.Fatalf("add news %s: %v", id, err)
	}
}

type fakeCanonicalizer struct {
	known map[string]*common.Mention
	calls int
}

func (f *fakeCanonicalizer) Canonicalize(_ context.Context, name string, _ common.ActorType, _ string) (*common.Mention, error) {
	f.calls++
	return f.known[name], nil
}

func TestResolveMentionAttachesByQID(t *testing.T) {
	g := newTestGraph(t)
	mustAddActor(t, g, &common.Actor{
		ID:            "actor_putin",
		CanonicalName: "Vladimir Putin",
		Type:          common.ActorPerson,
		WikidataQID:   "Q7747",
	})
	r := NewResolver(g, Options{})

	actor, err := r.ResolveMention(context.Background(), &common.Mention{
		Name:        "Путин",
		Type:        common.ActorPerson,
		WikidataQID: "Q7747",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.ID != "actor_putin" {
		t.Fatalf("attached to wrong actor: %s", actor.ID)
	}
	if !actor.HasAlias("Путин") {
		t.Errorf("alias not folded in: %+v", actor.Aliases)
	}
	if g.ActorCount() != 1 {
		t.Errorf("actor count: got %d, want 1", g.ActorCount())
	}
}

func TestResolveMentionAttachesByKnownName(t *testing.T) {
	g := newTestGraph(t)
	mustAddActor(t, g, &common.Actor{
		ID:            "actor_eu",
		CanonicalName: "European Union",
		Type:          common.ActorOrganization,
		Aliases:       []common.Alias{{Name: "EU", Kind: common.AliasKnowledge}},
	})
	r := NewResolver(g, Options{})

	actor, err := r.ResolveMention(context.Background(), &common.Mention{Name: "eu", Type: common.ActorOrganization})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.ID != "actor_eu" {
		t.Fatalf("attached to wrong actor: %s", actor.ID)
	}
	if g.ActorCount() != 1 {
		t.Errorf("actor count: got %d, want 1", g.ActorCount())
	}
}

func TestResolveMentionCreatesAndIndexesIncrementally(t *testing.T) {
	g := newTestGraph(t)
	r := NewResolver(g, Options{})
	ctx := context.Background()

	first, err := r.ResolveMention(ctx, &common.Mention{Name: "Acme Corp", Type: common.ActorCompany})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The same name later in the pass must hit the index, not create again.
	second, err := r.ResolveMention(ctx, &common.Mention{Name: "acme corp", Type: common.ActorCompany})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate actor created: %s vs %s", first.ID, second.ID)
	}
	if g.ActorCount() != 1 {
		t.Errorf("actor count: got %d, want 1", g.ActorCount())
	}
}

func TestResolveMentionUsesCanonicalizer(t *testing.T) {
	g := newTestGraph(t)
	canon := &fakeCanonicalizer{known: map[string]*common.Mention{
		"Putin": {
			CanonicalName: "Vladimir Putin",
			WikidataQID:   "Q7747",
			Aliases:       []common.Alias{{Name: "Владимир Путин", Kind: common.AliasKnowledge, Language: "ru"}},
		},
	}}
	r := NewResolver(g, Options{Canonicalizer: canon})

	actor, err := r.ResolveMention(context.Background(), &common.Mention{Name: "Putin", Type: common.ActorPerson})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.CanonicalName != "Vladimir Putin" || actor.WikidataQID != "Q7747" {
		t.Fatalf("enrichment not applied: %+v", actor)
	}
	if !actor.HasAlias("Владимир Путин") || !actor.HasAlias("Putin") {
		t.Errorf("aliases missing: %+v", actor.Aliases)
	}
	if canon.calls != 1 {
		t.Errorf("canonicalizer calls: got %d, want 1", canon.calls)
	}
}

func TestDeduplicateSharedQID(t *testing.T) {
	g := newTestGraph(t)
	mustAddActor(t, g, &common.Actor{ID: "a1", CanonicalName: "Vladimir Putin", Type: common.ActorPerson, WikidataQID: "Q7747"})
	mustAddActor(t, g, &common.Actor{ID: "a2", CanonicalName: "Путин", Type: common.ActorPerson, WikidataQID: "Q7747"})
	mustAddNews(t, g, "n1", "a2")
	r := NewResolver(g, Options{})

	res, err := r.Deduplicate(context.Background())
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if res.Merged != 1 {
		t.Fatalf("merged: got %d, want 1", res.Merged)
	}

	survivors := g.AllActors()
	if len(survivors) != 1 {
		t.Fatalf("actor count: got %d, want 1", len(survivors))
	}
	survivor := survivors[0]
	if survivor.WikidataQID != "Q7747" {
		t.Errorf("survivor lost QID: %+v", survivor)
	}
	if !survivor.HasAlias("Путин") {
		t.Errorf("losing canonical name not retained as alias: %+v", survivor.Aliases)
	}
	if got := g.NewsActors("n1"); !reflect.DeepEqual(got, []string{survivor.ID}) {
		t.Errorf("mention list not rewritten: %v", got)
	}
}

func TestDeduplicateTransitiveChain(t *testing.T) {
	g := newTestGraph(t)
	// A matches B by name; B matches C by identifier. Every reference to A
	// must end up on the group survivor, not on B.
	mustAddActor(t, g, &common.Actor{ID: "a", CanonicalName: "OpenAI"})
	mustAddActor(t, g, &common.Actor{ID: "b", CanonicalName: "OpenAI", WikidataQID: "Q1"})
	mustAddActor(t, g, &common.Actor{ID: "c", CanonicalName: "OpenAI Inc", WikidataQID: "Q1"})
	mustAddNews(t, g, "n1", "a")
	r := NewResolver(g, Options{})

	res, err := r.Deduplicate(context.Background())
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if res.Merged != 2 {
		t.Fatalf("merged: got %d, want 2", res.Merged)
	}
	survivors := g.AllActors()
	if len(survivors) != 1 {
		t.Fatalf("actor count: got %d, want 1", len(survivors))
	}
	if got := g.NewsActors("n1"); !reflect.DeepEqual(got, []string{survivors[0].ID}) {
		t.Errorf("reference not remapped to survivor: %v", got)
	}
}

func TestDeduplicateBlocklist(t *testing.T) {
	g := newTestGraph(t)
	mustAddActor(t, g, &common.Actor{ID: "a1", CanonicalName: "Negotiations"})
	mustAddActor(t, g, &common.Actor{ID: "a2", CanonicalName: "negotiations"})
	mustAddActor(t, g, &common.Actor{ID: "b1", CanonicalName: "Tesla"})
	mustAddActor(t, g, &common.Actor{ID: "b2", CanonicalName: "tesla"})
	r := NewResolver(g, Options{})

	res, err := r.Deduplicate(context.Background())
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if res.Merged != 1 {
		t.Fatalf("merged: got %d, want 1", res.Merged)
	}
	var names []string
	for _, actor := range g.AllActors() {
		names = append(names, normalizeName(actor.CanonicalName))
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"negotiations", "negotiations", "tesla"}) {
		t.Errorf("wrong survivors: %v", names)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	g := newTestGraph(t)
	mustAddActor(t, g, &common.Actor{ID: "a1", CanonicalName: "Gazprom", WikidataQID: "Q102673"})
	mustAddActor(t, g, &common.Actor{ID: "a2", CanonicalName: "Газпром", WikidataQID: "Q102673"})
	mustAddActor(t, g, &common.Actor{ID: "a3", CanonicalName: "gazprom"})
	mustAddNews(t, g, "n1", "a2", "a3")
	r := NewResolver(g, Options{})
	ctx := context.Background()

	if _, err := r.Deduplicate(ctx); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	firstActors := g.AllActors()
	firstMentions := g.NewsActors("n1")

	res, err := r.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Merged != 0 {
		t.Fatalf("second pass merged %d actors", res.Merged)
	}
	if !reflect.DeepEqual(g.AllActors(), firstActors) {
		t.Errorf("actor set changed on second pass")
	}
	if !reflect.DeepEqual(g.NewsActors("n1"), firstMentions) {
		t.Errorf("mention list changed on second pass")
	}
}

func TestDeduplicateRefreshesStoryActors(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	mustAddActor(t, g, &common.Actor{ID: "a1", CanonicalName: "NATO", WikidataQID: "Q7184"})
	mustAddActor(t, g, &common.Actor{ID: "a2", CanonicalName: "nato"})
	mustAddNews(t, g, "n1", "a1")
	mustAddNews(t, g, "n2", "a2")
	if err := g.AddStory(ctx, &common.Story{ID: "st1", NewsIDs: []string{"n1", "n2"}, TopActors: []string{"a1", "a2"}}); err != nil {
		t.Fatalf("add story: %v", err)
	}
	r := NewResolver(g, Options{})

	if _, err := r.Deduplicate(ctx); err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	story, err := g.Story("st1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(story.TopActors, []string{"a1"}) {
		t.Errorf("top actors not refreshed: %v", story.TopActors)
	}
}

func TestPromoteCanonicalScript(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	mustAddActor(t, g, &common.Actor{
		ID:            "a1",
		CanonicalName: "Путин",
		Type:          common.ActorPerson,
		Aliases: []common.Alias{
			{Name: "Putin", Kind: common.AliasKnowledge},
			{Name: "Vladimir Putin", Kind: common.AliasKnowledge},
		},
	})
	mustAddActor(t, g, &common.Actor{ID: "a2", CanonicalName: "Angela Merkel", Type: common.ActorPerson})
	r := NewResolver(g, Options{})

	promoted, err := r.PromoteCanonicalScript(ctx)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("promoted: got %d, want 1", promoted)
	}

	actor, err := g.Actor("a1")
	if err != nil {
		t.Fatal(err)
	}
	if actor.CanonicalName != "Vladimir Putin" {
		t.Fatalf("canonical name: got %q", actor.CanonicalName)
	}
	superseded := false
	for _, alias := range actor.Aliases {
		if alias.Name == "Путин" && alias.Kind == common.AliasSuperseded {
			superseded = true
		}
		if alias.Name == "Vladimir Putin" {
			t.Errorf("promoted name still listed as alias")
		}
	}
	if !superseded {
		t.Errorf("previous canonical not retained: %+v", actor.Aliases)
	}
}

func TestIsLatinName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Vladimir Putin", true},
		{"Путин", false},
		{"Émile Zola", true},
		{"G7", true},
		{"", true},
		{"東京", false},
	}
	for _, tt := range tests {
		if got := isLatinName(tt.name); got != tt.want {
			t.Errorf("isLatinName(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}
}
