package assignment

import (
	"context"
	"time"
)

const SweepJobName = "offer-sweep"

// SweepJob: периодический вызов SweepExpiredOffers для воркера.
type SweepJob struct {
	coordinator *Coordinator
	now         func() time.Time
}

func NewSweepJob(c *Coordinator) *SweepJob {
	return &SweepJob{coordinator: c, now: c.now}
}

func (j *SweepJob) Name() string { return SweepJobName }

func (j *SweepJob) Run(ctx context.Context) error {
	_, err := j.coordinator.SweepExpiredOffers(ctx, j.now())
	return err
}
