package solver

import (
	"context"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

// ReplaySolver answers requests whose record was preloaded from a recorded
// history and forwards everything else to Next. Fresh responses are not
// added to the table.
//
// Records are compared by their exact text, so the formatting of request
// lines must be stable between runs.
type ReplaySolver struct {
	Next ExternalSolver

	seen   *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewReplaySolver wraps next with an empty replay table.
func NewReplaySolver(next ExternalSolver) *ReplaySolver {
	return &ReplaySolver{
		Next: next,
		seen: cache.New(cache.NoExpiration, 0),
	}
}

// Preload records the output lines for a request record.
func (r *ReplaySolver) Preload(record string, lines []string) {
	r.seen.Set(record, append([]string(nil), lines...), cache.NoExpiration)
}

// Known returns the number of records that can be replayed.
func (r *ReplaySolver) Known() int {
	return r.seen.ItemCount()
}

// Hits returns how many requests were answered without launching the solver.
func (r *ReplaySolver) Hits() int64 { return r.hits.Load() }

// Misses returns how many requests were forwarded to Next.
func (r *ReplaySolver) Misses() int64 { return r.misses.Load() }

// Run implements ExternalSolver.
func (r *ReplaySolver) Run(ctx context.Context, req Request) (Response, error) {
	if v, ok := r.seen.Get(req.Record); ok {
		r.hits.Add(1)
		lines := v.([]string)
		return Response{Lines: append([]string(nil), lines...), Replayed: true}, nil
	}

	r.misses.Add(1)
	return r.Next.Run(ctx, req)
}
