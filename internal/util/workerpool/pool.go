package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of fetch work executed by the pool
type Job struct {
	// Name identifies the job in logs, e.g. "options:model#4"
	Name string
	Fn   func(context.Context) error
}

// Pool runs jobs on a bounded set of goroutines fed by a bounded queue
type Pool struct {
	name          string
	maxWorkers    int
	queue         chan Job
	queueSize     int
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	wg            sync.WaitGroup
	stopOnce      sync.Once
	submitMu      sync.Mutex
	stopped       chan struct{}
	activeWorkers int32
	submitted     uint64
	completed     uint64
	failed        uint64
	rejected      uint64
}

// Config holds worker pool configuration
type Config struct {
	Name       string
	MaxWorkers int
	QueueSize  int
	Logger     *zap.Logger
}

// New creates a pool and starts its workers
func New(cfg *Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:       cfg.Name,
		maxWorkers: cfg.MaxWorkers,
		queueSize:  cfg.QueueSize,
		queue:      make(chan Job, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     cfg.Logger,
		stopped:    make(chan struct{}),
	}

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug("Worker pool started",
		zap.String("name", p.name),
		zap.Int("max_workers", p.maxWorkers),
		zap.Int("queue_size", p.queueSize))

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopped:
			return
		case job := <-p.queue:
			p.run(id, job)
		}
	}
}

func (p *Pool) run(workerID int, job Job) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	start := time.Now()
	err := p.safeRun(job)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.logger.Debug("Job failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.String("job", job.Name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	atomic.AddUint64(&p.completed, 1)
	p.logger.Debug("Job completed",
		zap.String("pool", p.name),
		zap.Int("worker_id", workerID),
		zap.String("job", job.Name),
		zap.Duration("duration", duration))
}

// drain runs jobs left in the queue once every worker has exited
func (p *Pool) drain() {
	for {
		select {
		case job := <-p.queue:
			p.run(-1, job)
		default:
			return
		}
	}
}

func (p *Pool) safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			p.logger.Error("Job panic recovered",
				zap.String("pool", p.name),
				zap.String("job", job.Name),
				zap.Any("panic", r))
		}
	}()

	return job.Fn(p.ctx)
}

// Submit queues a job without blocking.
// Returns an error if the queue is full or the pool is stopped. A job that
// is accepted always runs, with a cancelled context if Stop came first.
func (p *Pool) Submit(job Job) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	select {
	case <-p.stopped:
		atomic.AddUint64(&p.rejected, 1)
		return fmt.Errorf("worker pool '%s' is stopped", p.name)
	default:
	}

	select {
	case p.queue <- job:
		atomic.AddUint64(&p.submitted, 1)
		return nil
	default:
		atomic.AddUint64(&p.rejected, 1)
		return fmt.Errorf("worker pool '%s' queue is full", p.name)
	}
}

// Stop cancels the context handed to running jobs and waits for workers to
// exit. Jobs still queued are then run with the cancelled context.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		p.submitMu.Lock()
		close(p.stopped)
		p.submitMu.Unlock()
		p.cancel()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			p.drain()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Debug("Worker pool stopped", zap.String("name", p.name))
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool '%s' stop timeout after %v", p.name, timeout)
			p.logger.Warn("Worker pool stop timeout", zap.String("name", p.name))
		}
	})
	return err
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Name:          p.name,
		MaxWorkers:    p.maxWorkers,
		ActiveWorkers: int(atomic.LoadInt32(&p.activeWorkers)),
		QueueSize:     p.queueSize,
		Queued:        len(p.queue),
		Submitted:     atomic.LoadUint64(&p.submitted),
		Completed:     atomic.LoadUint64(&p.completed),
		Failed:        atomic.LoadUint64(&p.failed),
		Rejected:      atomic.LoadUint64(&p.rejected),
	}
}

// Stats represents worker pool statistics
type Stats struct {
	Name          string
	MaxWorkers    int
	ActiveWorkers int
	QueueSize     int
	Queued        int
	Submitted     uint64
	Completed     uint64
	Failed        uint64
	Rejected      uint64
}

// QueueUtilization returns the queue utilization as a percentage
func (s Stats) QueueUtilization() float64 {
	if s.QueueSize == 0 {
		return 0
	}
	return (float64(s.Queued) / float64(s.QueueSize)) * 100.0
}
