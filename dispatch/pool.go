// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"runtime"
	"sync"
)

// pool is a fixed set of worker goroutines draining an unbounded FIFO
// of tasks. Submission never blocks beyond appending to the queue;
// completion order across tasks is whatever the workers produce.
type pool struct {
	mu     sync.Mutex
	ready  *sync.Cond
	tasks  []func()
	closed bool
	wg     sync.WaitGroup
}

// newPool starts a pool with the given number of workers; non-positive
// means one worker per available CPU.
func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &pool{}
	p.ready = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.ready.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		task()
	}
}

// submit queues a task. It reports false when the pool has been
// closed, in which case the task is discarded.
func (p *pool) submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.tasks = append(p.tasks, task)
	p.ready.Signal()
	return true
}

// close stops accepting tasks, drains the ones already queued, and
// waits for the workers to exit.
func (p *pool) close() {
	p.mu.Lock()
	p.closed = true
	p.ready.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
