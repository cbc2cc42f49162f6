package orbit

import "sync"

// workChunk is a range of subsets for one worker.
type workChunk struct {
	start, end int
	fn         func(start, end int)
}

// pool is a persistent fork-join worker pool. run blocks until every chunk
// is done, so callers never observe a partially generated orbit.
type pool struct {
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newPool(numWorkers int) *pool {
	return &pool{numWorkers: numWorkers}
}

// start launches the worker goroutines.
func (p *pool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *pool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker processes chunks until stopped.
func (p *pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run splits [0, n) into at most numWorkers chunks and waits for all of them.
func (p *pool) run(n int, fn func(start, end int)) {
	p.start()

	chunks := p.numWorkers
	if chunks > n {
		chunks = n
	}
	size := (n + chunks - 1) / chunks

	sent := 0
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		p.workChan <- workChunk{start: start, end: end, fn: fn}
		sent++
	}

	for i := 0; i < sent; i++ {
		<-p.doneChan
	}
}
