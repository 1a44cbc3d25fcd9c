package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-interest-registry/internal/pipeline"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) RegisterInterest(ctx context.Context, interest, token string) (bool, error) {
	args := m.Called(ctx, interest, token)
	return args.Bool(0), args.Error(1)
}
func (m *mockRegistrar) RemoveInterest(ctx context.Context, interest, token string) (bool, error) {
	args := m.Called(ctx, interest, token)
	return args.Bool(0), args.Error(1)
}

// Satisfy strict interface (unused by the processor)
func (m *mockRegistrar) GetInterests(context.Context, []string) ([]string, error) { return nil, nil }

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	msg := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "msg-1"}}

	t.Run("Register applies the token", func(t *testing.T) {
		reg := new(mockRegistrar)
		reg.On("RegisterInterest", mock.Anything, "sports", "ExponentPushToken[A]").Return(true, nil)

		processor := pipeline.NewProcessor(reg, logger)
		err := processor(ctx, msg, &pipeline.InterestCommand{
			Action: pipeline.ActionRegister, Interest: "sports", Token: "ExponentPushToken[A]",
		})

		require.NoError(t, err)
		reg.AssertExpectations(t)
	})

	t.Run("Invalid token is acked, not retried", func(t *testing.T) {
		reg := new(mockRegistrar)
		reg.On("RegisterInterest", mock.Anything, "sports", "junk").
			Return(false, fmt.Errorf("%w: %q", registry.ErrInvalidToken, "junk"))

		processor := pipeline.NewProcessor(reg, logger)
		err := processor(ctx, msg, &pipeline.InterestCommand{
			Action: pipeline.ActionRegister, Interest: "sports", Token: "junk",
		})

		assert.NoError(t, err)
	})

	t.Run("Empty interest is acked, not retried", func(t *testing.T) {
		reg := new(mockRegistrar)
		reg.On("RegisterInterest", mock.Anything, "", "ExponentPushToken[A]").
			Return(false, registry.ErrEmptyInterest)

		processor := pipeline.NewProcessor(reg, logger)
		err := processor(ctx, msg, &pipeline.InterestCommand{
			Action: pipeline.ActionRegister, Interest: "", Token: "ExponentPushToken[A]",
		})

		assert.NoError(t, err)
	})

	t.Run("Storage error is retryable", func(t *testing.T) {
		reg := new(mockRegistrar)
		boom := errors.New("disk full")
		reg.On("RegisterInterest", mock.Anything, "sports", "ExponentPushToken[A]").Return(false, boom)

		processor := pipeline.NewProcessor(reg, logger)
		err := processor(ctx, msg, &pipeline.InterestCommand{
			Action: pipeline.ActionRegister, Interest: "sports", Token: "ExponentPushToken[A]",
		})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("Unregister without token drops the interest", func(t *testing.T) {
		reg := new(mockRegistrar)
		reg.On("RemoveInterest", mock.Anything, "sports", "").Return(true, nil)

		processor := pipeline.NewProcessor(reg, logger)
		err := processor(ctx, msg, &pipeline.InterestCommand{Action: pipeline.ActionUnregister, Interest: "sports"})

		require.NoError(t, err)
		reg.AssertExpectations(t)
	})
}
