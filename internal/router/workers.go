package router

import (
	"sync"

	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Search task and worker pool
// =============================================================================

// searchTask is everything a worker needs for one search. It is built
// before the workers are released and never modified while they run.
type searchTask struct {
	gen      uint64
	target   rrgraph.NodeID
	bb       rrgraph.BoundingBox
	targetBB rrgraph.BoundingBox
	cost     costModel
	prune    pruner
	// wg joins the helper workers at the end of the drain.
	wg sync.WaitGroup
}

// workerPool runs the drain of each search on long-lived goroutines. The
// caller acts as worker 0; helpers are workers 1..n-1.
//
// Publishing a task on every helper channel releases the helpers; waiting
// on the task's WaitGroup joins them again once the queue is drained.
type workerPool struct {
	tasks []chan *searchTask
	run   func(task *searchTask, worker int)
	stop  sync.WaitGroup
	once  sync.Once
}

func newWorkerPool(threads int, run func(*searchTask, int)) *workerPool {
	p := &workerPool{
		tasks: make([]chan *searchTask, max(threads, 1)-1),
		run:   run,
	}
	for i := range p.tasks {
		ch := make(chan *searchTask)
		p.tasks[i] = ch
		p.stop.Add(1)
		go p.loop(ch, i+1)
	}
	return p
}

func (p *workerPool) loop(ch <-chan *searchTask, worker int) {
	defer p.stop.Done()
	for task := range ch {
		p.run(task, worker)
		task.wg.Done()
	}
}

// execute releases every helper on task, drains on the calling goroutine
// and returns once all helpers are finished.
func (p *workerPool) execute(task *searchTask) {
	task.wg.Add(len(p.tasks))
	for _, ch := range p.tasks {
		ch <- task
	}
	p.run(task, 0)
	task.wg.Wait()
}

// size returns the number of workers including the caller.
func (p *workerPool) size() int { return len(p.tasks) + 1 }

// close stops the helpers. It must not run concurrently with execute.
func (p *workerPool) close() {
	p.once.Do(func() {
		for _, ch := range p.tasks {
			close(ch)
		}
		p.stop.Wait()
	})
}
