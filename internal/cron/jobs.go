package cron

import (
	"context"
	"fmt"

	"github.com/bazario/bazario-backend/internal/settlement"
)

// SettlementReleaseJob sweeps delivered sub-orders past the hold window.
type SettlementReleaseJob struct {
	svc settlement.Service
}

// NewSettlementReleaseJob wires the settlement sweep job.
func NewSettlementReleaseJob(svc settlement.Service) (*SettlementReleaseJob, error) {
	if svc == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &SettlementReleaseJob{svc: svc}, nil
}

func (j *SettlementReleaseJob) Name() string { return "settlement_release" }

func (j *SettlementReleaseJob) Run(ctx context.Context) error {
	_, err := j.svc.ReleaseDueSettlements(ctx)
	return err
}
