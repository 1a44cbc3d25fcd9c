// --- File: internal/pipeline/transformer.go ---
// Package pipeline applies interest registration commands received from Pub/Sub.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// Action is what a command does to an interest.
type Action string

const (
	ActionRegister   Action = "register"
	ActionUnregister Action = "unregister"
)

// InterestCommand is the JSON payload of a registration message.
// An unregister command without a token drops the whole interest.
type InterestCommand struct {
	Action   Action `json:"action"`
	Interest string `json:"interest"`
	Token    string `json:"token,omitempty"`
}

// InterestCommandTransformer is a dataflow Transformer that unmarshals and
// checks the shape of a raw message. Token format is left to the registrar.
func InterestCommandTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*InterestCommand, bool, error) {
	var cmd InterestCommand

	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		// skip=true lets the StreamingService Nack the message towards the DLQ.
		return nil, true, fmt.Errorf("failed to unmarshal interest command from message %s: %w", msg.ID, err)
	}

	switch cmd.Action {
	case ActionRegister, ActionUnregister:
	default:
		return nil, true, fmt.Errorf("unknown action %q in message %s", cmd.Action, msg.ID)
	}
	if cmd.Interest == "" {
		return nil, true, fmt.Errorf("missing interest in message %s", msg.ID)
	}

	return &cmd, false, nil
}
