package worker

import (
	"time"

	"github.com/thebtf/chorus/internal/worker/sse"
)

// runScheduler runs collect-and-process passes on the configured poll
// interval until the service context is cancelled. The first pass runs
// immediately so a restart does not wait a full interval.
func (s *Service) runScheduler() {
	interval := s.config.PollInterval()
	if interval <= 0 {
		s.logger.Info().Msg("Polling disabled, scheduler not started")
		return
	}

	s.logger.Info().Dur("interval", interval).Msg("Scheduler started")
	s.runPass()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.runPass()
		}
	}
}

// runPass performs one scheduled collection and processing pass. Failures
// are logged and retried on the next tick.
func (s *Service) runPass() {
	stats, err := s.collector.CheckMentions(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled mention check failed")
		return
	}
	s.sseBroadcaster.Broadcast(sse.NewEvent("mentions_checked", stats))

	summary, err := s.pipeline.ProcessAll(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled processing failed")
		return
	}
	if summary.Eligible > 0 {
		s.sseBroadcaster.Broadcast(sse.NewEvent("run_complete", summary))
	}
}
