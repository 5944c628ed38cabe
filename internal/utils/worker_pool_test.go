package utils_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracksecure/telemetry-bridge/internal/utils"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := utils.NewWorkerPool(4, 16)

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
	}
	wg.Wait()

	assert.Equal(t, int64(100), atomic.LoadInt64(&counter))
	pool.Shutdown()
}

func TestWorkerPool_ShutdownIsIdempotent(t *testing.T) {
	pool := utils.NewWorkerPool(2, 4)
	pool.Submit(func() {})
	pool.Shutdown()
	pool.Shutdown()
}
