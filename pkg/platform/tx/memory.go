package tx

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "cliquey/pkg/domain-errors"
)

const numMemoryShards = 64

// MemoryRunner gives in-memory stores all-or-nothing semantics. Transactions
// sharing a lock key are serialized on the same shard; mutations register undo
// steps in a journal that is replayed in reverse when fn fails.
type MemoryRunner struct {
	shards  [numMemoryShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

type lockKey struct{}
type journalKey struct{}

// WithLockKey names the resource a transaction contends on (a profile ID, an
// invitation code). Without a key every transaction uses shard 0.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKey{}, key)
}

// Journal collects undo steps for one in-memory transaction.
type Journal struct {
	undo []func()
}

// OnRollback registers an undo step.
func (j *Journal) OnRollback(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *Journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// JournalFrom returns the active journal, if the context is inside a MemoryRunner
// transaction.
func JournalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok
}

// RecordUndo registers fn with the active journal. Outside a transaction it is a no-op.
func RecordUndo(ctx context.Context, fn func()) {
	if j, ok := JournalFrom(ctx); ok {
		j.OnRollback(fn)
	}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := JournalFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	journal := &Journal{}
	defer func() {
		if p := recover(); p != nil {
			journal.rollback()
			panic(p)
		}
		if err != nil {
			journal.rollback()
		}
	}()

	return fn(context.WithValue(ctx, journalKey{}, journal))
}

func (r *MemoryRunner) selectShard(ctx context.Context) int {
	key, ok := ctx.Value(lockKey{}).(string)
	if !ok || key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numMemoryShards)
}
