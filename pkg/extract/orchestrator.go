package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
	"github.com/storygraph/backend/pkg/resolve"
)

const defaultWorkers = 4

// Orchestrator drives extraction workflows across the resolution engine.
// One background run executes at a time; starting while a run is active is a
// no-op returning the current progress snapshot. Reset bumps the run
// generation so results still in flight from the old run are discarded.
type Orchestrator struct {
	graph     *graphstore.Store
	resolver  *resolve.Resolver
	extractor MentionExtractor
	events    *EventExtractor
	workers   int

	// mu serializes run starts and progress writes; progress carries the
	// atomically swapped snapshot for readers.
	mu         sync.Mutex
	progress   atomic.Pointer[Progress]
	generation atomic.Uint64

	// resolveMu serializes resolution while extraction calls run in
	// parallel; the resolver's name index is not safe for concurrent use.
	resolveMu sync.Mutex
}

func NewOrchestrator(graph *graphstore.Store, resolver *resolve.Resolver, extractor MentionExtractor, workers int) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	o := &Orchestrator{
		graph:     graph,
		resolver:  resolver,
		extractor: extractor,
		events:    NewEventExtractor(),
		workers:   workers,
	}
	o.progress.Store(&Progress{State: StateIdle, Message: "idle"})
	return o
}

// Status returns the current progress snapshot.
func (o *Orchestrator) Status() Progress {
	return *o.progress.Load()
}

// Reset forcibly returns the orchestrator to idle. In-flight extraction
// calls are not interrupted, but the generation bump poisons their results:
// nothing from the abandoned run is applied once the reset is observed.
func (o *Orchestrator) Reset() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	gen := o.generation.Add(1)
	snapshot := &Progress{
		State:      StateIdle,
		Message:    "reset",
		ActorCount: o.graph.ActorCount(),
		Generation: gen,
		UpdatedAt:  time.Now().UTC(),
	}
	o.progress.Store(snapshot)
	logger.Warn("[Extract] Orchestrator reset", "generation", gen)
	return *snapshot
}

// StartInitialization clears every actor and mention edge, then extracts all
// known documents from scratch in the background.
func (o *Orchestrator) StartInitialization(ctx context.Context) Progress {
	news := o.graph.AllNews()
	gen, started := o.begin(len(news), "initializing")
	if !started {
		return o.Status()
	}
	go func() {
		if err := o.graph.ClearActors(context.Background()); err != nil {
			logger.Error("[Extract] Failed to clear actors", "error", err)
			o.finish(gen, 0, len(news))
			return
		}
		o.runBatch(gen, news)
	}()
	return o.Status()
}

// ExtractAll reprocesses every known document in the background without
// clearing existing actors.
func (o *Orchestrator) ExtractAll(ctx context.Context) Progress {
	news := o.graph.AllNews()
	gen, started := o.begin(len(news), "extracting all documents")
	if !started {
		return o.Status()
	}
	go o.runBatch(gen, news)
	return o.Status()
}

// ExtractForStory reprocesses only the documents of one story in the
// background.
func (o *Orchestrator) ExtractForStory(ctx context.Context, storyID string) (Progress, error) {
	story, err := o.graph.Story(storyID)
	if err != nil {
		return o.Status(), err
	}
	news := make([]*common.News, 0, len(story.NewsIDs))
	for _, id := range story.NewsIDs {
		if item, err := o.graph.News(id); err == nil {
			news = append(news, item)
		}
	}
	gen, started := o.begin(len(news), fmt.Sprintf("extracting story %s", storyID))
	if !started {
		return o.Status(), nil
	}
	go o.runBatch(gen, news)
	return o.Status(), nil
}

// ExtractForNews processes a single document synchronously. Unlike batch
// runs, the failure is reported to the caller and no deduplication pass is
// triggered.
func (o *Orchestrator) ExtractForNews(ctx context.Context, news *common.News) error {
	mentions, err := o.extractor.ExtractMentions(ctx, news.Text())
	if err != nil {
		return fmt.Errorf("failed to extract mentions for %s: %w", news.ID, err)
	}
	return o.applyMentions(ctx, news, mentions)
}

// begin transitions Idle -> Running, claiming the run. Returns false when a
// run is already active.
func (o *Orchestrator) begin(total int, message string) (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.progress.Load().Running {
		return 0, false
	}
	gen := o.generation.Add(1)
	now := time.Now().UTC()
	o.progress.Store(&Progress{
		State:      StateRunning,
		Running:    true,
		Total:      total,
		Message:    message,
		ActorCount: o.graph.ActorCount(),
		Generation: gen,
		StartedAt:  now,
		UpdatedAt:  now,
	})
	logger.Info("[Extract] Run started", "total", total, "message", message, "generation", gen)
	return gen, true
}

// mutate swaps in an updated copy of the progress snapshot, unless the run
// generation has moved on.
func (o *Orchestrator) mutate(gen uint64, update func(*Progress)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.generation.Load() != gen {
		return false
	}
	next := *o.progress.Load()
	update(&next)
	next.UpdatedAt = time.Now().UTC()
	o.progress.Store(&next)
	return true
}

func (o *Orchestrator) runBatch(gen uint64, news []*common.News) {
	ctx := context.Background()
	var processed, failed atomic.Int64
	var credentialDead atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for _, item := range news {
		if o.generation.Load() != gen {
			break
		}
		g.Go(func() error {
			o.mutate(gen, func(p *Progress) {
				p.CurrentID = item.ID
				p.CurrentTitle = item.Title
			})

			err := o.processNews(ctx, gen, item, &credentialDead)
			if err != nil {
				failed.Add(1)
				o.mutate(gen, func(p *Progress) {
					p.Failed = int(failed.Load())
					p.Message = fmt.Sprintf("failed %s: %v", item.ID, err)
				})
				logger.Warn("[Extract] Document failed", "id", item.ID, "error", err)
			}
			processed.Add(1)
			o.mutate(gen, func(p *Progress) {
				p.Processed = int(processed.Load())
				p.ActorCount = o.graph.ActorCount()
			})
			return nil
		})
	}
	_ = g.Wait()

	o.finish(gen, int(processed.Load()), int(failed.Load()))
}

// processNews extracts and resolves one document's mentions. A dead
// credential degrades the rest of the run to a no-enrichment pass instead of
// aborting it.
func (o *Orchestrator) processNews(ctx context.Context, gen uint64, news *common.News, credentialDead *atomic.Bool) error {
	if credentialDead.Load() {
		return nil
	}

	mentions, err := o.extractor.ExtractMentions(ctx, news.Text())
	if err != nil {
		if errors.Is(err, ErrCredentialInvalid) {
			credentialDead.Store(true)
			o.mutate(gen, func(p *Progress) {
				p.Message = "extraction credential invalid, continuing without extraction"
			})
		}
		return err
	}

	// A reset while the call above was in flight poisons the result.
	if o.generation.Load() != gen {
		logger.Debug("[Extract] Discarding stale extraction result", "id", news.ID, "generation", gen)
		return nil
	}

	return o.applyMentions(ctx, news, mentions)
}

func (o *Orchestrator) applyMentions(ctx context.Context, news *common.News, mentions []common.Mention) error {
	o.resolveMu.Lock()
	defer o.resolveMu.Unlock()

	ids := make([]string, 0, len(mentions))
	seen := make(map[string]struct{}, len(mentions))
	for i := range mentions {
		actor, err := o.resolver.ResolveMention(ctx, &mentions[i])
		if err != nil {
			logger.Warn("[Extract] Failed to resolve mention", "name", mentions[i].Name, "error", err)
			continue
		}
		if _, dup := seen[actor.ID]; dup {
			continue
		}
		seen[actor.ID] = struct{}{}
		ids = append(ids, actor.ID)
	}

	news.MentionedActors = ids
	if err := o.graph.AddNews(ctx, news); err != nil {
		return err
	}

	// Events are produced once per document; re-extraction refreshes the
	// mention list but leaves the existing timeline alone.
	if len(o.graph.NewsEvents(news.ID)) > 0 {
		return nil
	}
	events := o.events.MergeDuplicates(o.events.ExtractFromNews(news, time.Now().UTC()), eventMergeThreshold)
	for _, event := range events {
		if err := o.graph.AddEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to register event for %s: %w", news.ID, err)
		}
	}
	return nil
}

// finish runs the end-of-batch work and returns to idle. Deduplication is a
// batch-global operation and runs exactly once per run, even when some
// documents failed.
func (o *Orchestrator) finish(gen uint64, processed, failed int) {
	if !o.mutate(gen, func(p *Progress) {
		p.State = StateCompleting
		p.Message = "deduplicating actors"
		p.CurrentID = ""
		p.CurrentTitle = ""
	}) {
		logger.Debug("[Extract] Abandoned run skipped completion", "generation", gen)
		return
	}

	ctx := context.Background()
	o.resolveMu.Lock()
	result, err := o.resolver.Deduplicate(ctx)
	if err == nil {
		_, err = o.resolver.PromoteCanonicalScript(ctx)
	}
	o.resolveMu.Unlock()
	if err != nil {
		logger.Error("[Extract] Post-run deduplication failed", "error", err)
	}

	message := fmt.Sprintf("completed: %d processed, %d failed", processed, failed)
	if err == nil && result != nil && result.Merged > 0 {
		message = fmt.Sprintf("%s, %d actors merged", message, result.Merged)
	}
	o.mutate(gen, func(p *Progress) {
		p.State = StateIdle
		p.Running = false
		p.Message = message
		p.ActorCount = o.graph.ActorCount()
	})
	logger.Info("[Extract] Run completed", "processed", processed, "failed", failed, "generation", gen)
}
