// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
)

// A small bounded worker pool. Tasks run with the context passed to Start.

type Task func(ctx context.Context) error

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  logging.OrNop(logger),
	}
}

func (p *Pool) Size() int { return p.n }

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Int("worker", id).Interface("panic", rec).Msg("worker task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Int("worker", id).Err(err).Msg("worker task failed")
	}
}

// Stop signals the workers and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues without blocking and fails with ErrQueueFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait blocks until the task is queued, the pool stops, or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
