package pipeline

import (
	"context"
	"sync"
)

// WorkerPool runs jobs on a fixed number of goroutines fed by a bounded queue.
type WorkerPool struct {
	workers   int
	taskQueue chan func(context.Context)
	wg        sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(context.Context), queue),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// TrySubmit queues job unless the queue is full or the pool stopped.
func (wp *WorkerPool) TrySubmit(job func(context.Context)) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.taskQueue <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.taskQueue)
	wp.mu.Unlock()
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			job(ctx)

		case <-ctx.Done():
			return
		}
	}
}
