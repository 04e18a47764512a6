package flow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// TaskGroup runs fire-and-forget tasks. Tasks sharing a key run one at a time in the
// order Go was called; tasks with different keys, or with an empty key, run concurrently.
// A panicking task is recovered and logged.
type TaskGroup struct {
	wg sync.WaitGroup

	mu     sync.Mutex
	queues map[string]*keyQueue
	closed bool
}

// keyQueue chains the tasks of one key: each task waits for the previous one's done channel.
type keyQueue struct {
	tail chan struct{}
	refs int
}

// NewTaskGroup creates an empty TaskGroup.
func NewTaskGroup() *TaskGroup {
	return &TaskGroup{queues: make(map[string]*keyQueue)}
}

// Go schedules fn under key and returns its correlation id. An empty key skips the
// per-key queue. After Shutdown it returns an error and fn is not run.
func (g *TaskGroup) Go(ctx context.Context, key string, name string, fn func(ctx context.Context)) (string, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return "", fmt.Errorf("task group is shut down")
	}
	var prev, done chan struct{}
	var q *keyQueue
	if key != "" {
		q = g.queues[key]
		if q == nil {
			q = &keyQueue{}
			g.queues[key] = q
		}
		prev, done = q.tail, make(chan struct{})
		q.tail = done
		q.refs++
	}
	g.wg.Add(1)
	g.mu.Unlock()

	id := uuid.NewString()
	slog.Debug("TaskGroup.Go: scheduled", "task_id", id, "task", name, "key", key)

	go func() {
		defer g.wg.Done()
		if q != nil {
			defer g.release(key, q, done)
			if prev != nil {
				<-prev
			}
		}
		g.run(ctx, id, name, key, fn)
	}()
	return id, nil
}

func (g *TaskGroup) run(ctx context.Context, id, name, key string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("TaskGroup: task panicked", "task_id", id, "task", name, "key", key,
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(ctx)
	slog.Debug("TaskGroup: task finished", "task_id", id, "task", name, "key", key)
}

// release lets the next task of key start and drops the queue once nothing references it.
func (g *TaskGroup) release(key string, q *keyQueue, done chan struct{}) {
	close(done)
	g.mu.Lock()
	defer g.mu.Unlock()
	q.refs--
	if q.refs == 0 {
		delete(g.queues, key)
	}
}

// Wait blocks until every scheduled task has finished.
func (g *TaskGroup) Wait() {
	g.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones, or for ctx to end.
func (g *TaskGroup) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("TaskGroup.Shutdown: all tasks finished")
		return nil
	case <-ctx.Done():
		slog.Warn("TaskGroup.Shutdown: gave up waiting for tasks", "error", ctx.Err())
		return ctx.Err()
	}
}
