package utils

import (
	"sync"
)

// WorkerPool runs fire-and-forget tasks on a fixed set of workers. The hub
// uses it for best-effort work such as priming a freshly connected session,
// keeping those sends off the connection-accept path.
type WorkerPool struct {
	jobQueue  chan func()
	waitGroup sync.WaitGroup
	closeOnce sync.Once
}

// NewWorkerPool starts a pool with the given number of workers and queue
// capacity.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		jobQueue: make(chan func(), queueSize),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.jobQueue {
		task()
	}
}

// Submit queues a task for execution. It blocks when the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.jobQueue <- task
}

// Shutdown stops accepting tasks and waits for in-flight ones to finish.
func (wp *WorkerPool) Shutdown() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
	wp.waitGroup.Wait()
}
