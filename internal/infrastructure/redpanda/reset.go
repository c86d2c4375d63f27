package redpanda

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/pkg/idempotency"
)

// Resetter applies a reset that happened elsewhere
type Resetter interface {
	ApplyRemoteReset(ctx context.Context, evt *referral.Event)
}

// ResetListener applies StateReset events published by other instances.
// Events from this instance and redelivered events are skipped.
type ResetListener struct {
	instanceID string
	target     Resetter
	seen       *idempotency.Deduper
	logger     *zap.Logger
}

// NewResetListener creates a listener for the given instance
func NewResetListener(instanceID string, target Resetter, logger *zap.Logger) *ResetListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetListener{
		instanceID: instanceID,
		target:     target,
		seen:       idempotency.NewDeduper(time.Hour),
		logger:     logger,
	}
}

// Handle is a MessageHandler
func (l *ResetListener) Handle(ctx context.Context, msg *ConsumedMessage) error {
	var evt referral.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// poison records are logged and skipped so the partition keeps moving
		l.logger.Warn("undecodable referral event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	if evt.EventType != referral.EventStateReset {
		return nil
	}
	if evt.Source != "" && evt.Source == l.instanceID {
		return nil
	}
	if !l.seen.First(idempotency.Key("reset", evt.ID)) {
		l.logger.Debug("duplicate reset skipped", zap.String("event_id", evt.ID))
		return nil
	}

	l.target.ApplyRemoteReset(ctx, &evt)
	l.logger.Info("remote reset applied",
		zap.String("event_id", evt.ID),
		zap.String("source", evt.Source))
	return nil
}
