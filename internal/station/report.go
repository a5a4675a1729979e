package station

import (
	"context"
	"time"

	"dispatchscan/internal/logging"
	"dispatchscan/internal/pipeline"
)

const notifyTimeout = 15 * time.Second

// report forwards pipeline feedback to the operator and pushes failures to
// notifications in the background.
func (s *Station) report(fb pipeline.Feedback) {
	if fb.Kind == pipeline.KindFailure {
		channel, _ := s.session.Channel()
		s.notifyAsync(func(ctx context.Context) error {
			return s.notifier.NotifyScanFailure(ctx, channel, fb.RawText, fb.Message)
		})
	}
	if s.reporter != nil {
		s.reporter.Report(fb)
	}
}

// deviceLost handles a running capture source ending unexpectedly.
func (s *Station) deviceLost(err error) {
	s.mu.Lock()
	s.handle = nil
	s.mu.Unlock()
	s.notifyDevice(err)
	if s.reporter != nil {
		s.reporter.Report(pipeline.Feedback{
			Kind:    pipeline.KindFailure,
			Message: "Scanner stopped, start capture again or enter scans manually",
			Origin:  pipeline.OriginCapture,
			Err:     err,
			At:      time.Now(),
		})
	}
}

func (s *Station) notifyDevice(err error) {
	source := s.capture.SourceName()
	s.notifyAsync(func(ctx context.Context) error {
		return s.notifier.NotifyDeviceError(ctx, source, err)
	})
}

func (s *Station) notifyAsync(send func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.logger.Debug("notification failed", logging.Error(err))
		}
	}()
}
