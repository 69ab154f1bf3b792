package notification

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
	"smsrelay/internal/logger"
	apperrors "smsrelay/pkg/errors"
	"smsrelay/pkg/metrics"
	"smsrelay/pkg/models"
	"smsrelay/pkg/tracing"
)

const ReasonNoTargets = "No push targets configured"

// Dispatcher fans one notification out to every resolved target.
type Dispatcher struct {
	transport      Transport
	defaultTargets []string
	timeout        time.Duration
	logger         logger.Logger
}

func NewDispatcher(transport Transport, cfg config.PushConfig, log logger.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	return &Dispatcher{
		transport:      transport,
		defaultTargets: SplitTargets(cfg.Keys),
		timeout:        timeout,
		logger:         log,
	}
}

// SplitTargets parses a comma-separated target list, dropping blanks.
func SplitTargets(keys string) []string {
	var targets []string
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			targets = append(targets, k)
		}
	}
	return targets
}

// ResolveTargets returns explicit when non-empty, the configured defaults
// otherwise.
func (d *Dispatcher) ResolveTargets(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	return d.defaultTargets
}

// Dispatch attempts every target concurrently and waits for all of them.
// Per-target failures are reported in the result, never returned. The only
// error is ErrConfig when no target resolves. Delivery is detached from ctx
// cancellation; each attempt is bounded by the configured timeout instead.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification, explicit []string) (models.DispatchResult, error) {
	targets := d.ResolveTargets(explicit)
	if len(targets) == 0 {
		d.logger.WarnwCtx(ctx, "No push targets configured")
		return models.DispatchResult{}, apperrors.ErrConfig.WithMessage(ReasonNoTargets)
	}

	ctx, span := tracing.GetTracer(constants.ServiceName).Start(context.WithoutCancel(ctx), "notification.dispatch")
	defer span.End()
	span.SetAttributes(attribute.Int("push.targets", len(targets)))

	outcomes := make([]models.PushOutcome, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			outcomes[i] = d.send(ctx, target, n)
			return nil
		})
	}
	_ = g.Wait()

	result := models.DispatchResult{
		Attempted: len(targets),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("push.succeeded", result.Succeeded),
		attribute.Int("push.failed", result.Failed),
	)
	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, target string, n Notification) models.PushOutcome {
	masked := MaskTarget(target)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.transport.Send(ctx, target, n)
	duration := time.Since(start)

	if err != nil {
		metrics.ObservePush(duration, "failed")
		d.logger.WarnwCtx(ctx, "Push failed",
			"target", masked,
			"error", err,
			"duration", duration,
		)
		return models.PushOutcome{Target: masked, Error: err.Error()}
	}

	metrics.ObservePush(duration, "success")
	d.logger.InfowCtx(ctx, "Push succeeded",
		"target", masked,
		"duration", duration,
	)
	return models.PushOutcome{Target: masked, Success: true}
}
