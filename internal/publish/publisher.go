package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
)

// ErrPublishIncomplete reports that at least one entry did not reach the
// store. Run-scoped writes that did land are harmless: they are
// content-addressed and a re-publish resumes them.
var ErrPublishIncomplete = errors.New("publish incomplete")

// Outcome classifies what happened to one plan entry.
type Outcome string

const (
	OutcomeWritten        Outcome = "written"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeWouldWrite     Outcome = "would_write"
	OutcomeFailed         Outcome = "failed"
)

// EntryResult records the outcome for one plan entry, in plan order.
type EntryResult struct {
	ObjectKey       string
	ContentHash     string
	IsLatestPointer bool
	Outcome         Outcome
	Error           string
}

// Result is the per-entry outcome of a publish.
type Result struct {
	RunID   string
	Bucket  string
	DryRun  bool
	Entries []EntryResult
}

// OK reports whether every entry reached the store (or would have, in
// dry-run mode).
func (r Result) OK() bool {
	for _, entry := range r.Entries {
		if entry.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

// Source supplies artifact bodies for upload.
type Source interface {
	Open(relativePath string) (io.ReadCloser, error)
}

// DirSource reads artifact bodies from a local staging directory.
type DirSource struct {
	Root string
}

func (s DirSource) Open(relativePath string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Root, filepath.FromSlash(relativePath)))
}

const defaultWorkers = 4

type Publisher struct {
	store   objectstore.Store
	source  Source
	workers int
}

type Option func(*Publisher)

// WithWorkers bounds the number of concurrent run-scoped writes.
func WithWorkers(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPublisher builds a publisher. A nil store forces dry-run behavior.
func NewPublisher(store objectstore.Store, source Source, opts ...Option) *Publisher {
	p := &Publisher{store: store, source: source, workers: defaultWorkers}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish realizes a plan. Run-scoped entries are written first, in
// parallel; only after every one of them is confirmed does the
// latest-pointer batch go out, so "latest" never references a
// half-written run. Already-present objects with matching hashes are
// skipped, which makes re-publishing a completed run a no-op.
func (p *Publisher) Publish(ctx context.Context, plan Plan, dryRun bool) (Result, error) {
	result := Result{
		RunID:   plan.RunID,
		Bucket:  plan.Bucket,
		DryRun:  dryRun || p.store == nil,
		Entries: make([]EntryResult, len(plan.Entries)),
	}
	for i, entry := range plan.Entries {
		result.Entries[i] = EntryResult{
			ObjectKey:       entry.ObjectKey,
			ContentHash:     entry.ContentHash,
			IsLatestPointer: entry.IsLatestPointer,
		}
	}

	if result.DryRun {
		for i := range result.Entries {
			result.Entries[i].Outcome = OutcomeWouldWrite
		}
		return result, nil
	}
	if p.source == nil {
		return Result{}, errors.New("artifact source is required for a real publish")
	}

	runIdx := make([]int, 0, len(plan.Entries)/2)
	latestIdx := make([]int, 0, len(plan.Entries)/2)
	for i, entry := range plan.Entries {
		if entry.IsLatestPointer {
			latestIdx = append(latestIdx, i)
		} else {
			runIdx = append(runIdx, i)
		}
	}

	p.writeParallel(ctx, plan, runIdx, &result)

	barrierOpen := true
	for _, i := range runIdx {
		if result.Entries[i].Outcome == OutcomeFailed {
			barrierOpen = false
			break
		}
	}
	if !barrierOpen {
		// The barrier stays closed: no latest pointer may move for a
		// partially written run.
		for _, i := range latestIdx {
			result.Entries[i].Outcome = OutcomeFailed
			result.Entries[i].Error = "run entries incomplete"
		}
		return result, fmt.Errorf("%w: run %s", ErrPublishIncomplete, plan.RunID)
	}

	// Latest pointers flush as a tight serial batch; the first failure
	// aborts the rest so a partial pointer flip is reported, never
	// claimed successful.
	aborted := false
	for _, i := range latestIdx {
		if aborted {
			result.Entries[i].Outcome = OutcomeFailed
			result.Entries[i].Error = "aborted after pointer write failure"
			continue
		}
		p.writeEntry(ctx, plan, i, &result)
		if result.Entries[i].Outcome == OutcomeFailed {
			aborted = true
		}
	}
	if aborted {
		return result, fmt.Errorf("%w: run %s latest pointers", ErrPublishIncomplete, plan.RunID)
	}
	return result, nil
}

func (p *Publisher) writeParallel(ctx context.Context, plan Plan, indexes []int, result *Result) {
	workers := p.workers
	if workers > len(indexes) {
		workers = len(indexes)
	}
	if workers < 1 {
		return
	}

	work := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				p.writeEntry(ctx, plan, i, result)
			}
		}()
	}
	for _, i := range indexes {
		work <- i
	}
	close(work)
	wg.Wait()
}

// writeEntry uploads one entry; workers touch disjoint result slots so no
// lock is needed.
func (p *Publisher) writeEntry(ctx context.Context, plan Plan, i int, result *Result) {
	entry := plan.Entries[i]
	slot := &result.Entries[i]

	if err := ctx.Err(); err != nil {
		slot.Outcome = OutcomeFailed
		slot.Error = err.Error()
		return
	}

	// Same key plus same hash is a no-op for run entries and latest
	// pointers alike; that is what makes re-publishing a completed run
	// safe without coordination.
	info, err := p.store.Stat(ctx, plan.Bucket, entry.ObjectKey)
	switch {
	case err == nil && info.ContentSHA256 == entry.ContentHash:
		slot.Outcome = OutcomeAlreadyPresent
		return
	case err != nil && !errors.Is(err, objectstore.ErrNotFound):
		slot.Outcome = OutcomeFailed
		slot.Error = err.Error()
		return
	}

	body, err := p.source.Open(entry.RelativePath)
	if err != nil {
		slot.Outcome = OutcomeFailed
		slot.Error = err.Error()
		return
	}
	defer func() { _ = body.Close() }()

	if err := p.store.Put(ctx, plan.Bucket, entry.ObjectKey, body, entry.SizeBytes, entry.ContentHash); err != nil {
		slot.Outcome = OutcomeFailed
		slot.Error = err.Error()
		return
	}
	slot.Outcome = OutcomeWritten
}
