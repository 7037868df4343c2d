package jobs

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Task is one unit of work handed to the pool.
type Task interface {
	ID() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function into a Task.
type TaskFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (t TaskFunc) ID() string                    { return t.Name }
func (t TaskFunc) Run(ctx context.Context) error { return t.Fn(ctx) }

// Result records how one task ended.
type Result struct {
	ID       string
	Status   Status
	Error    string
	Duration time.Duration
}

// Summary is returned once every submitted task has finished.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []Result // in submission order
}
