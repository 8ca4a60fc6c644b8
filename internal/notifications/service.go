package notifications

import (
	"context"
	"errors"
	"log/slog"

	"mediawatch/internal/classify"
	"mediawatch/internal/config"
)

const userAgent = "mediawatch/1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	// Deliver sends a digest. Callers skip empty digests.
	Deliver(ctx context.Context, digest classify.Digest) error
	// Test sends a fixed message to confirm the transport works.
	Test(ctx context.Context) error
}

// NewService builds the notifiers enabled in cfg. When nothing is configured a
// noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	var services []Service
	if cfg.Email.Enabled {
		services = append(services, NewEmailService(cfg.Email, logger))
	}
	if ntfy := NewNtfyService(cfg.Ntfy); ntfy != nil {
		services = append(services, ntfy)
	}
	switch len(services) {
	case 0:
		return Noop()
	case 1:
		return services[0]
	default:
		return Multi(services...)
	}
}

type multiService []Service

// Multi fans a digest out to every notifier and joins their errors.
func Multi(services ...Service) Service {
	return multiService(services)
}

func (m multiService) Deliver(ctx context.Context, digest classify.Digest) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Deliver(ctx, digest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Test(ctx context.Context) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Test(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

// Noop returns a Service that discards everything.
func Noop() Service {
	return noopService{}
}

func (noopService) Deliver(context.Context, classify.Digest) error { return nil }
func (noopService) Test(context.Context) error                     { return nil }
