package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/hass"
)

// Run is the perpetual polling loop. After the warm-up delay it collects
// and pushes dynamic sensors once per configured interval; the interval is
// re-read every cycle so changes apply on the next wait. When a push comes
// back 410 the registered flag is demoted and further cycles skip collection
// until a registration workflow restores it; the stored webhook id is kept
// for diagnostics. All other push failures are logged and dropped; the next
// cycle sends a fresh snapshot. Returns only when ctx is cancelled.
func (a *Agent) Run(ctx context.Context, warmup time.Duration) error {
	select {
	case <-time.After(warmup):
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		interval := a.updateInterval()

		if a.Registered() {
			values := a.collector.CollectDynamic(ctx)
			if err := a.client.UpdateSensors(ctx, values); err != nil {
				a.logger.Error("failed to update sensors", zap.Error(err))
				if errors.Is(err, hass.ErrWebhookExpired) {
					a.logger.Warn("webhook expired, re-registration required")
					a.setRegistered(false)
				}
			}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
