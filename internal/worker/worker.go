// Package worker запускает периодические задачи с эксклюзивной блокировкой на цикл.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Leganyst/booking-matcher/internal/lock"
	"github.com/Leganyst/booking-matcher/internal/logger"
	"github.com/Leganyst/booking-matcher/internal/metrics"
)

const defaultInterval = time.Minute

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc адаптирует функцию к Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs возвращает копию списка задач в порядке регистрации.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     lock.Mutex
	Metrics  *metrics.Jobs
	Interval time.Duration
}

// Service выполняет задачи реестра раз в interval. Цикл пропускается, если блокировку держит другой экземпляр.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     lock.Mutex
	metrics  *metrics.Jobs
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := p.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     p.Logger,
		registry: registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: interval,
	}, nil
}

// Run крутит цикл до отмены ctx.
func (s *Service) Run(ctx context.Context) error {
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "worker lock acquire failed", err)
		return
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Debug(ctx, "another worker holds the lock, skipping cycle")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "worker lock release failed", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)

	s.metrics.ObserveDuration(job.Name(), elapsed)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Debug(jobCtx, "job completed")
}
