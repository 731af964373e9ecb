package workflow

import "sync"

// pool is a bounded worker pool with an unbounded work queue. The worker
// count caps how many steps run simultaneously; excess ready steps queue
// until a slot frees
type pool struct {
	cond    *sync.Cond
	queue   []func()
	workers int
	stopped bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// start launches the worker goroutines
func (p *pool) start() {
	p.wg.Add(p.workers)
	for range p.workers {
		go p.worker()
	}
}

// submit enqueues a job, reporting false once the pool has stopped
func (p *pool) submit(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	return true
}

// stop drains the queue and waits for all workers to exit. Jobs already
// queued still run; new submissions are refused
func (p *pool) stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		fn()
	}
}
