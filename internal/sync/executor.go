package sync

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/campustools/gridcal/internal/timetable"
)

// DefaultBatchSize bounds how many provider calls run at once. Chunks run
// concurrently inside and sequentially across, which caps pressure on the
// provider without serializing the whole run.
const DefaultBatchSize = 5

// Applier executes single calendar operations against the provider.
type Applier interface {
	Create(ctx context.Context, calendarID string, event timetable.ScheduleEvent) error
	Update(ctx context.Context, calendarID string, providerID string, event timetable.ScheduleEvent) error
	Delete(ctx context.Context, calendarID string, providerID string) error
}

// Result tallies what one Apply run did. Failed counts operations that
// errored and were skipped; they stay unresolved remotely and the next run
// picks them up again.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Executor applies a reconciliation plan in fixed-size chunks. One failed
// operation is logged and counted, never allowed to abort the batch or the
// run.
type Executor struct {
	Client    Applier
	BatchSize int
}

type operation struct {
	kind string
	id   string
	run  func(context.Context) error
}

// Apply executes the plan's deletes, updates and creates against the given
// calendar. Deletes go first so a shrunken schedule frees its slots before
// new events land. Returns the running totals; a cancelled context stops
// between chunks and reports what was applied up to that point.
func (x Executor) Apply(ctx context.Context, calendarID string, plan Plan) Result {
	size := x.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var ops []operation
	for _, rec := range plan.Deletes {
		rec := rec
		ops = append(ops, operation{kind: "delete", id: rec.ProviderID, run: func(ctx context.Context) error {
			return x.Client.Delete(ctx, calendarID, rec.ProviderID)
		}})
	}
	for _, upd := range plan.Updates {
		upd := upd
		ops = append(ops, operation{kind: "update", id: upd.Event.ID, run: func(ctx context.Context) error {
			return x.Client.Update(ctx, calendarID, upd.Target.ProviderID, upd.Event)
		}})
	}
	for _, e := range plan.Creates {
		e := e
		ops = append(ops, operation{kind: "create", id: e.ID, run: func(ctx context.Context) error {
			return x.Client.Create(ctx, calendarID, e)
		}})
	}

	var created, updated, deleted, failed int64
	for start := 0; start < len(ops); start += size {
		if ctx.Err() != nil {
			break
		}
		end := start + size
		if end > len(ops) {
			end = len(ops)
		}

		var wg sync.WaitGroup
		for _, op := range ops[start:end] {
			op := op
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := op.run(ctx); err != nil {
					log.Printf("[ERROR] calendar %s failed for %s: %v", op.kind, op.id, err)
					atomic.AddInt64(&failed, 1)
					return
				}
				switch op.kind {
				case "create":
					atomic.AddInt64(&created, 1)
				case "update":
					atomic.AddInt64(&updated, 1)
				case "delete":
					atomic.AddInt64(&deleted, 1)
				}
			}()
		}
		wg.Wait()
	}

	return Result{
		Created: int(created),
		Updated: int(updated),
		Deleted: int(deleted),
		Failed:  int(failed),
	}
}
