package charges

import (
	"context"

	"go.uber.org/zap"
)

const (
	settlementStatusSettled = "settled"
	settlementStatusPaid    = "paid"
	settlementStatusExpired = "expired"
)

// Stats aggregates one reconciliation pass.
type Stats struct {
	Processed    int `json:"processed"`
	Settled      int `json:"settled"`
	WebhooksSent int `json:"webhooks_sent"`
}

// ProcessWebhooks advances every pending charge toward settlement and
// dispatches at most one webhook per settlement transition.
//
// Ordering is deliberate: the charge is marked paid BEFORE the webhook
// attempt, so a failing merchant endpoint can never roll back received
// funds. The paid transition is a guarded conditional update; under
// concurrent passes only the winner dispatches, so a webhook is never
// sent twice for one settlement.
//
// One charge's failure never aborts the rest of the batch. An error is
// returned only when the pending set itself cannot be loaded.
func (service *Service) ProcessWebhooks(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := service.store.ListPendingCharges(ctx)
	if err != nil {
		return stats, WrapError("reconcile", "charge", "list_pending", err)
	}
	stats.Processed = len(pending)

	for _, charge := range pending {
		service.reconcileCharge(ctx, charge, &stats)
	}

	service.logger.Info("webhook pass complete",
		zap.Int("processed", stats.Processed),
		zap.Int("settled", stats.Settled),
		zap.Int("webhooks_sent", stats.WebhooksSent))
	return stats, nil
}

func (service *Service) reconcileCharge(ctx context.Context, charge Charge, stats *Stats) {
	status, err := service.gateway.ReceiveStatus(ctx, charge.PaymentHash.String())
	if err != nil {
		// Daemon unreachable or malformed answer: the charge stays
		// pending and the next pass retries.
		service.logger.Warn("settlement status check failed",
			zap.String("charge_id", charge.ID),
			zap.String("payment_hash", charge.PaymentHash.String()),
			zap.Error(err))
		return
	}

	if status != settlementStatusSettled && status != settlementStatusPaid {
		return
	}

	updated, won, err := service.store.MarkChargePaid(ctx, charge.ID)
	if err != nil {
		service.logger.Error("mark paid failed",
			zap.String("charge_id", charge.ID), zap.Error(err))
		return
	}
	if !won {
		// A concurrent pass already recorded this settlement and owns
		// the webhook attempt.
		return
	}
	stats.Settled++

	if !updated.WebhookURL.IsSet() {
		return
	}

	deliveryErr := service.sender.Deliver(ctx, updated.WebhookURL.String(), NewWebhookPayload(updated))
	outcome := WebhookStatusSuccess
	if deliveryErr != nil {
		outcome = WebhookStatusFailed
		service.logger.Warn("webhook delivery failed",
			zap.String("charge_id", updated.ID),
			zap.String("webhook_url", updated.WebhookURL.String()),
			zap.Error(deliveryErr))
	}
	if err := service.store.SetWebhookStatus(ctx, updated.ID, outcome); err != nil {
		service.logger.Error("webhook status update failed",
			zap.String("charge_id", updated.ID), zap.Error(err))
	}
	if deliveryErr == nil {
		stats.WebhooksSent++
	}
}
