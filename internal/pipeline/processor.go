package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// NewProcessor applies each command through the registrar.
// Invalid tokens are dropped (acked) since a retry cannot fix them; storage
// errors are returned so the message is redelivered.
func NewProcessor(
	registrar registry.Registrar,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[InterestCommand] {

	return func(ctx context.Context, original messagepipeline.Message, cmd *InterestCommand) error {
		procLogger := logger.With(
			"interest", cmd.Interest,
			"action", string(cmd.Action),
			"pubsub_msg_id", original.ID,
		)

		switch cmd.Action {
		case ActionRegister:
			stored, err := registrar.RegisterInterest(ctx, cmd.Interest, cmd.Token)
			if errors.Is(err, registry.ErrInvalidToken) || errors.Is(err, registry.ErrEmptyInterest) {
				procLogger.Warn("Dropping invalid registration", "err", err)
				return nil
			}
			if err != nil {
				procLogger.Error("Registration failed", "err", err)
				return err // Retryable
			}
			procLogger.Info("Token registered", "stored", stored)

		case ActionUnregister:
			removed, err := registrar.RemoveInterest(ctx, cmd.Interest, cmd.Token)
			if err != nil {
				procLogger.Error("Unregistration failed", "err", err)
				return err // Retryable
			}
			procLogger.Info("Interest updated", "removed", removed, "all", cmd.Token == "")
		}

		return nil
	}
}
