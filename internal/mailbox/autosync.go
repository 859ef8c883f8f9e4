package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// RunSyncLoop syncs the inbox whenever trigger fires and, when interval is
// positive, on a fixed cadence. It blocks until ctx is cancelled. Bursts of
// triggers that arrive during a sync collapse into one follow-up sync.
func (s *Service) RunSyncLoop(ctx context.Context, trigger <-chan struct{}, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			s.syncFromLoop(ctx, "new mail")
		case <-tick:
			s.syncFromLoop(ctx, "interval")
		}
	}
}

func (s *Service) syncFromLoop(ctx context.Context, reason string) {
	result, err := s.SyncInbox(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.WithError(err).WithField("reason", reason).Error("Mailbox: background sync failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"reason":   reason,
		"inserted": result.Inserted,
	}).Debug("Mailbox: background sync finished")
}
