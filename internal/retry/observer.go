package retry

import (
	"context"
	"log/slog"
	"time"

	"mediawatch/internal/logging"
)

// Status is the final state of a retried operation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusExhausted Status = "exhausted"
	StatusAborted   Status = "aborted"
	StatusCanceled  Status = "canceled"
)

// Attempt describes a single invocation. NextDelay is zero when no retry follows.
type Attempt struct {
	Operation string
	Number    int
	Err       error
	Elapsed   time.Duration
	NextDelay time.Duration
}

// Outcome describes how an operation finished.
type Outcome struct {
	Operation string
	Attempts  int
	Status    Status
	Err       error
	Elapsed   time.Duration
}

// Observer receives every attempt and the final outcome.
type Observer interface {
	OnAttempt(ctx context.Context, a Attempt)
	OnOutcome(ctx context.Context, o Outcome)
}

type nopObserver struct{}

func (nopObserver) OnAttempt(context.Context, Attempt) {}
func (nopObserver) OnOutcome(context.Context, Outcome) {}

// MultiObserver forwards to each non-nil observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnAttempt(ctx context.Context, a Attempt) {
	for _, obs := range m {
		if obs != nil {
			obs.OnAttempt(ctx, a)
		}
	}
}

func (m MultiObserver) OnOutcome(ctx context.Context, o Outcome) {
	for _, obs := range m {
		if obs != nil {
			obs.OnOutcome(ctx, o)
		}
	}
}

// LogObserver writes attempts and outcomes to a slog logger.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver tags logger with the retry component.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{Logger: logging.NewComponentLogger(logger, "retry")}
}

func (l *LogObserver) OnAttempt(ctx context.Context, a Attempt) {
	if a.Err == nil || a.NextDelay == 0 {
		return
	}
	logging.WithContext(ctx, l.Logger).Debug("attempt failed; backing off",
		logging.String("operation", a.Operation),
		logging.Int("attempt", a.Number),
		logging.Duration("next_delay", a.NextDelay),
		logging.Error(a.Err),
	)
}

func (l *LogObserver) OnOutcome(ctx context.Context, o Outcome) {
	logger := logging.WithContext(ctx, l.Logger)
	switch o.Status {
	case StatusSuccess:
		if o.Attempts > 1 {
			logger.Info("operation recovered after retry",
				logging.String("operation", o.Operation),
				logging.Int("attempts", o.Attempts),
				logging.Duration("elapsed", o.Elapsed),
			)
		}
	case StatusExhausted:
		logging.WarnWithContext(logger, "operation failed on every attempt", "retry_exhausted",
			logging.String("operation", o.Operation),
			logging.Int("attempts", o.Attempts),
			logging.Error(o.Err),
			logging.String(logging.FieldErrorHint, "check upstream availability and credentials"),
		)
	case StatusAborted, StatusCanceled:
		logger.Debug("operation stopped without retry",
			logging.String("operation", o.Operation),
			logging.String("status", string(o.Status)),
			logging.Error(o.Err),
		)
	}
}
