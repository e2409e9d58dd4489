package extract

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/resolve"
	"github.com/storygraph/backend/pkg/store/memory"
)

type fakeExtractor struct {
	mu       sync.Mutex
	mentions map[string][]common.Mention
	errs     map[string]error
	calls    atomic.Int64
	// block, when set, is closed by the test to release in-flight calls.
	block chan struct{}
}

func (f *fakeExtractor) ExtractMentions(_ context.Context, text string) ([]common.Mention, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	return f.mentions[text], nil
}

func newTestOrchestrator(t *testing.T, extractor MentionExtractor) (*Orchestrator, *graphstore.Store) {
	t.Helper()
	g := graphstore.New(memory.New())
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	r := resolve.NewResolver(g, resolve.Options{})
	return NewOrchestrator(g, r, extractor, 2), g
}

func mustAddNews(t *testing.T, g *graphstore.Store, id, title string) {
	t.Helper()
	err := g.AddNews(context.Background(), &common.News{
		ID:          id,
		Title:       title,
		Source:      "test",
		PublishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add news %s: %v", id, err)
	}
}

func waitIdle(t *testing.T, o *Orchestrator) Progress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p := o.Status()
		if !p.Running {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("orchestrator did not return to idle: %+v", o.Status())
	return Progress{}
}

func TestExtractAllResolvesMentions(t *testing.T) {
	extractor := &fakeExtractor{mentions: map[string][]common.Mention{
		"alpha": {{Name: "Acme Corp", Type: common.ActorCompany, Confidence: 0.9}},
		"beta":  {{Name: "acme corp", Type: common.ActorCompany, Confidence: 0.8}},
	}}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "alpha")
	mustAddNews(t, g, "n2", "beta")

	o.ExtractAll(context.Background())
	p := waitIdle(t, o)

	if p.Processed != 2 || p.Failed != 0 {
		t.Fatalf("progress: %+v", p)
	}
	if p.State != StateIdle {
		t.Errorf("state: got %s", p.State)
	}
	// Both spellings resolve to one actor.
	if g.ActorCount() != 1 {
		t.Fatalf("actor count: got %d, want 1", g.ActorCount())
	}
	actors := g.AllActors()
	if got := g.NewsActors("n1"); !reflect.DeepEqual(got, []string{actors[0].ID}) {
		t.Errorf("n1 mentions: %v", got)
	}
	if got := g.NewsActors("n2"); !reflect.DeepEqual(got, []string{actors[0].ID}) {
		t.Errorf("n2 mentions: %v", got)
	}
}

func TestPerDocumentFailureDoesNotAbortBatch(t *testing.T) {
	extractor := &fakeExtractor{
		mentions: map[string][]common.Mention{
			"good": {{Name: "Tesla", Type: common.ActorCompany}},
		},
		errs: map[string]error{"bad": errors.New("malformed response")},
	}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "bad")
	mustAddNews(t, g, "n2", "good")

	o.ExtractAll(context.Background())
	p := waitIdle(t, o)

	if p.Processed != 2 {
		t.Errorf("processed: got %d, want 2", p.Processed)
	}
	if p.Failed != 1 {
		t.Errorf("failed: got %d, want 1", p.Failed)
	}
	if g.ActorCount() != 1 {
		t.Errorf("actor from good document missing, count %d", g.ActorCount())
	}
}

func TestCredentialInvalidDegradesRun(t *testing.T) {
	extractor := &fakeExtractor{
		errs: map[string]error{
			"first":  ErrCredentialInvalid,
			"second": ErrCredentialInvalid,
			"third":  ErrCredentialInvalid,
		},
	}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "first")
	mustAddNews(t, g, "n2", "second")
	mustAddNews(t, g, "n3", "third")

	o.ExtractAll(context.Background())
	p := waitIdle(t, o)

	if p.Processed != 3 {
		t.Errorf("processed: got %d, want 3", p.Processed)
	}
	// Workers run in parallel, so up to the worker count may observe the
	// dead credential before the flag propagates; the rest must be skipped
	// without further collaborator calls.
	if calls := extractor.calls.Load(); calls > 2 {
		t.Errorf("extractor called %d times after credential death", calls)
	}
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	extractor := &fakeExtractor{block: make(chan struct{})}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "alpha")

	first := o.ExtractAll(context.Background())
	if !first.Running {
		t.Fatalf("first run not running: %+v", first)
	}
	second := o.ExtractAll(context.Background())
	if second.Generation != first.Generation {
		t.Errorf("second start began a new run: gen %d vs %d", second.Generation, first.Generation)
	}

	close(extractor.block)
	waitIdle(t, o)
}

func TestResetPoisonsInFlightResults(t *testing.T) {
	extractor := &fakeExtractor{
		block: make(chan struct{}),
		mentions: map[string][]common.Mention{
			"alpha": {{Name: "Acme Corp", Type: common.ActorCompany}},
		},
	}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "alpha")

	o.ExtractAll(context.Background())
	for extractor.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	p := o.Reset()
	if p.Running || p.State != StateIdle {
		t.Fatalf("reset left orchestrator running: %+v", p)
	}

	// Release the in-flight extraction; its result belongs to the old
	// generation and must be discarded.
	close(extractor.block)
	time.Sleep(50 * time.Millisecond)

	if g.ActorCount() != 0 {
		t.Errorf("stale extraction result was applied: %d actors", g.ActorCount())
	}
	if got := g.NewsActors("n1"); len(got) != 0 {
		t.Errorf("stale mentions applied: %v", got)
	}
	if o.Status().Message != "reset" {
		t.Errorf("abandoned run overwrote status: %+v", o.Status())
	}
}

func TestStartInitializationClearsActors(t *testing.T) {
	extractor := &fakeExtractor{mentions: map[string][]common.Mention{
		"alpha": {{Name: "Fresh Actor", Type: common.ActorPerson}},
	}}
	o, g := newTestOrchestrator(t, extractor)
	ctx := context.Background()
	if err := g.AddActor(ctx, &common.Actor{ID: "stale", CanonicalName: "Stale Actor"}); err != nil {
		t.Fatal(err)
	}
	mustAddNews(t, g, "n1", "alpha")

	o.StartInitialization(ctx)
	waitIdle(t, o)

	if _, err := g.Actor("stale"); !errors.Is(err, graphstore.ErrNotFound) {
		t.Errorf("stale actor survived initialization: %v", err)
	}
	if g.ActorCount() != 1 {
		t.Errorf("actor count: got %d, want 1", g.ActorCount())
	}
}

func TestExtractForStory(t *testing.T) {
	extractor := &fakeExtractor{mentions: map[string][]common.Mention{
		"in story": {{Name: "Story Actor", Type: common.ActorPerson}},
	}}
	o, g := newTestOrchestrator(t, extractor)
	ctx := context.Background()
	mustAddNews(t, g, "n1", "in story")
	mustAddNews(t, g, "n2", "outside")
	if err := g.AddStory(ctx, &common.Story{ID: "st1", NewsIDs: []string{"n1"}}); err != nil {
		t.Fatal(err)
	}

	if _, err := o.ExtractForStory(ctx, "st1"); err != nil {
		t.Fatalf("extract for story: %v", err)
	}
	p := waitIdle(t, o)
	if p.Processed != 1 {
		t.Errorf("processed: got %d, want 1", p.Processed)
	}
	if len(g.NewsActors("n1")) != 1 {
		t.Errorf("story member has no mentions")
	}
	if len(g.NewsActors("n2")) != 0 {
		t.Errorf("non-member was processed")
	}

	if _, err := o.ExtractForStory(ctx, "missing"); !errors.Is(err, graphstore.ErrNotFound) {
		t.Errorf("missing story: got %v", err)
	}
}

func TestExtractForNewsSynchronous(t *testing.T) {
	extractor := &fakeExtractor{mentions: map[string][]common.Mention{
		"solo": {{Name: "Solo Actor", Type: common.ActorPerson}},
	}}
	o, g := newTestOrchestrator(t, extractor)
	mustAddNews(t, g, "n1", "solo")

	news, err := g.News("n1")
	if err != nil {
		t.Fatal(err)
	}
	if err := o.ExtractForNews(context.Background(), news); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(g.NewsActors("n1")) != 1 {
		t.Errorf("mention not applied")
	}
	// Synchronous extraction reports failure to the caller.
	bad := &common.News{ID: "n2", Title: "missing text"}
	extractor.errs = map[string]error{"missing text": errors.New("boom")}
	if err := o.ExtractForNews(context.Background(), bad); err == nil {
		t.Errorf("failure not reported")
	}
}
