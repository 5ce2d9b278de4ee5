package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ridecast/internal/observability"
	"ridecast/internal/types"
)

// EmailSender is the transport the channel delivers through. Implemented by
// external.SMTPClient and its stub.
type EmailSender interface {
	Send(ctx context.Context, input types.SendInput) error
}

// EmailChannel delivers rendered recommendations to a rider's inbox. Primary
// address first; the backup address is a same-cycle retry target, not a CC.
// Delivery failure is reported to the caller but is never fatal to a cycle.
type EmailChannel struct {
	sender  EmailSender
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEmailChannel creates an EmailChannel.
func NewEmailChannel(sender EmailSender, logger *slog.Logger, metrics *observability.Metrics) *EmailChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailChannel{
		sender:  sender,
		logger:  logger,
		metrics: metrics,
	}
}

// Deliver sends the recommendation to the rider. If the primary address
// fails and a backup address exists, the backup is tried before giving up.
func (c *EmailChannel) Deliver(ctx context.Context, rider *types.Rider, rec *types.Recommendation) error {
	if rider == nil || rec == nil {
		return fmt.Errorf("email channel: rider and recommendation must not be nil")
	}

	addresses := []string{rider.Email}
	if rider.BackupEmail != "" {
		addresses = append(addresses, rider.BackupEmail)
	}

	var lastErr error
	for i, addr := range addresses {
		err := c.sender.Send(ctx, types.SendInput{
			To:       addr,
			ToName:   rider.Name,
			Subject:  rec.Subject,
			BodyHTML: rec.BodyHTML,
			BodyText: rec.BodyText,
		})
		if err == nil {
			if c.metrics != nil {
				c.metrics.EmailsSent.WithLabelValues("success").Inc()
			}
			c.logger.InfoContext(ctx, "recommendation delivered",
				"rider_id", rider.ID,
				"to", RedactEmail(addr),
				"backup_used", i > 0,
			)
			return nil
		}

		lastErr = err
		c.logger.WarnContext(ctx, "recommendation delivery failed",
			"rider_id", rider.ID,
			"to", RedactEmail(addr),
			"error", err,
		)
	}

	if c.metrics != nil {
		c.metrics.EmailsSent.WithLabelValues("error").Inc()
	}
	return fmt.Errorf("email channel: delivery failed for rider %s: %w", rider.ID, lastErr)
}

// RedactEmail keeps the first rune of the local part plus the domain, so logs
// stay correlatable without holding a full address.
func RedactEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	local := []rune(addr[:at])
	return string(local[0]) + "***" + addr[at:]
}
