package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type poolJob struct {
	name string
	run  func(ctx context.Context)
}

// workerPool runs role lookups and event deliveries off the request path.
// Submissions that cannot be handed off within handoffTimeout are rejected
// so the caller can run the job inline.
type workerPool struct {
	timeout        time.Duration
	handoffTimeout time.Duration
	log            *log.Logger

	mu     sync.RWMutex
	jobs   chan poolJob
	wg     sync.WaitGroup
	closed bool
}

func newWorkerPool(workers, buffer int, timeout, handoff time.Duration, logger *log.Logger) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	p := &workerPool{
		timeout:        timeout,
		handoffTimeout: handoff,
		log:            logger,
		jobs:           make(chan poolJob, buffer),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("session worker pool started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workers, buffer, timeout, handoff)
	return p
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(id, j)
	}
}

// execute runs j with the job timeout applied. It is also the inline path.
func (p *workerPool) execute(worker int, j poolJob) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("session job panicked, job: %s, worker: %d, panic: %v", j.name, worker, r)
		}
	}()
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	j.run(ctx)
}

// submit hands j to a worker and reports whether it was accepted.
func (p *workerPool) submit(j poolJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	if trySendNonBlocking(p.jobs, j) {
		return true
	}
	if p.handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(p.handoffTimeout)
	defer timer.Stop()
	return sendWithTimer(p.jobs, j, timer.C)
}

// close stops accepting jobs and waits for queued ones to finish.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func trySendNonBlocking(ch chan<- poolJob, j poolJob) bool {
	select {
	case ch <- j:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- poolJob, j poolJob, timer <-chan time.Time) bool {
	select {
	case ch <- j:
		return true
	case <-timer:
		return false
	}
}
