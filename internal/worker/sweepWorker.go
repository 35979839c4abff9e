package worker

import (
	"context"
	"time"

	"groupsend/internal/service"

	"github.com/sirupsen/logrus"
)

// SweepWorker periodically re-enqueues scheduled messages whose timer
// never fired, for example after a redis flush or a crash between
// persist and publish.
type SweepWorker struct {
	dispatchService service.DispatchService
	interval        time.Duration
}

func NewSweepWorker(dispatchService service.DispatchService, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		dispatchService: dispatchService,
		interval:        interval,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Overdue sweep worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Overdue sweep worker stopped")
			return
		case <-ticker.C:
			if err := w.dispatchService.SweepOverdue(ctx); err != nil {
				logrus.Errorf("Overdue sweep failed: %v", err)
			}
		}
	}
}
