package jobs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// MaxAutoWorkers caps the automatic worker count so the external tools are
// not flooded on machines with many cores.
const MaxAutoWorkers = 4

// ResolveWorkers returns n when positive, otherwise a default derived from
// the available CPUs in the range [1, MaxAutoWorkers].
func ResolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	return max(1, min(MaxAutoWorkers, runtime.NumCPU()))
}

// Pool runs tasks on a fixed number of workers.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	return &Pool{workerCount: ResolveWorkers(workerCount)}
}

func (p *Pool) Workers() int {
	return p.workerCount
}

type queued struct {
	index int
	task  Task
}

// Run executes every task exactly once and returns when all of them have
// finished. At most Workers() tasks run at the same time and tasks are
// dequeued in slice order. Task errors and panics are logged with the task
// ID and recorded in the summary; they never stop other tasks.
func (p *Pool) Run(ctx context.Context, tasks []Task) Summary {
	summary := Summary{
		Total:   len(tasks),
		Results: make([]Result, len(tasks)),
	}
	for i, task := range tasks {
		summary.Results[i] = Result{ID: task.ID(), Status: StatusPending}
	}
	if len(tasks) == 0 {
		return summary
	}

	pending := make(chan queued)
	var wg sync.WaitGroup

	for w := 0; w < min(p.workerCount, len(tasks)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range pending {
				// each index is written by exactly one worker
				summary.Results[q.index] = runTask(ctx, q.task)
			}
		}()
	}

	for i, task := range tasks {
		pending <- queued{index: i, task: task}
	}
	close(pending)
	wg.Wait()

	for _, r := range summary.Results {
		if r.Status == StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func runTask(ctx context.Context, task Task) Result {
	started := time.Now()
	result := Result{ID: task.ID(), Status: StatusRunning}

	err := safeRun(ctx, task)
	result.Duration = time.Since(started)
	if err != nil {
		log.Error("Task %s failed after %s: %v", task.ID(), result.Duration.Round(time.Millisecond), err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}
	result.Status = StatusSuccess
	return result
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime error: %v", r)
		}
	}()
	return task.Run(ctx)
}
