// Package loader resolves rotation images on background workers so that slow
// downloads never block tick delivery or the UI.
package loader

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"phototimer/pkg/imageload"
	"phototimer/pkg/logger"
)

var (
	// ErrStopped is returned by Submit after Stop or Shutdown
	ErrStopped = errors.New("loader pool is stopped")
	// ErrQueueFull is returned by Submit when the job queue has no room
	ErrQueueFull = errors.New("loader queue is full")
)

// Job asks for one photo to be resolved. Generation and Index let the
// receiver discard results that no longer match what is being shown.
type Job struct {
	Generation uint64
	Index      int
	URL        string
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Image    image.Image
	Format   string
	Err      error
	Duration time.Duration
}

// Pool runs a fixed number of image workers
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	loader      imageload.Loader
	timeout     time.Duration
	logger      logger.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool of numWorkers workers, each load bounded by timeout
func NewPool(numWorkers int, loader imageload.Loader, timeout time.Duration, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*8),
		resultQueue: make(chan Result, numWorkers*2),
		ctx:         ctx,
		cancel:      cancel,
		loader:      loader,
		timeout:     timeout,
		logger:      log,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	logger.LogComponentStart(p.logger, "loader", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop lets queued jobs finish, then closes Results
func (p *Pool) Stop() {
	if !p.markStopped() {
		return
	}
	p.wg.Wait()
	p.cancel()
	close(p.resultQueue)
	logger.LogComponentStop(p.logger, "loader", "drained")
}

// Shutdown abandons queued and in-flight jobs, then closes Results. Called
// while Stop is draining, it cuts the drain short and Stop closes Results.
func (p *Pool) Shutdown() {
	p.cancel()
	if !p.markStopped() {
		return
	}
	p.wg.Wait()
	close(p.resultQueue)
	logger.LogComponentStop(p.logger, "loader", "shutdown")
}

func (p *Pool) markStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	p.stopped = true
	close(p.jobQueue)
	return true
}

// Submit queues job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("image job queued", map[string]interface{}{
			"generation": job.Generation,
			"index":      job.Index,
			"url":        job.URL,
		})
		return nil
	default:
		return ErrQueueFull
	}
}

// Results delivers one Result per completed job
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		if p.ctx.Err() != nil {
			continue
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
		}
	}
}

func (p *Pool) processJob(job Job, workerID int) Result {
	start := time.Now()

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	img, format, err := p.loader.Load(ctx, job.URL)
	result := Result{
		Job:      job,
		Image:    img,
		Format:   format,
		Err:      err,
		Duration: time.Since(start),
	}

	fields := map[string]interface{}{
		"worker_id": workerID,
		"index":     job.Index,
		"url":       job.URL,
		"duration":  result.Duration,
	}
	if err != nil {
		p.logger.WithError(err).WarnWithFields("image load failed", fields)
	} else {
		p.logger.DebugWithFields("image load completed", fields)
	}

	return result
}
