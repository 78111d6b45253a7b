package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultAttemptTimeout = 30 * time.Second

// Outcome reports which transport delivered a message.
type Outcome struct {
	Method    string
	MessageID string
}

// Chain tries transports in configured priority order until one succeeds.
// The list is fixed at construction; runtime selection is pure iteration.
type Chain struct {
	transports     []Transport
	attemptTimeout time.Duration
	logger         *zap.Logger
}

func NewChain(transports []Transport, attemptTimeout time.Duration, logger *zap.Logger) (*Chain, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("at least one transport is required")
	}
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chain{
		transports:     transports,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}, nil
}

// Transports returns the configured priority order.
func (c *Chain) Transports() []Transport {
	return c.transports
}

// Send delivers msg through the first transport that succeeds. A failing
// transport never aborts the run; after exhaustion the returned *ChainError
// carries every attempted transport's error.
func (c *Chain) Send(ctx context.Context, msg Message) (*Outcome, error) {
	if c == nil || len(c.transports) == 0 {
		return nil, fmt.Errorf("chain is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := make([]AttemptError, 0, len(c.transports))
	for _, transport := range c.transports {
		receipt, err := c.sendOnce(ctx, transport, msg)
		if err == nil {
			c.logger.Debug("message delivered",
				zap.String("transport", transport.Name()),
				zap.String("to", msg.To),
			)

			outcome := &Outcome{Method: transport.Name()}
			if receipt != nil {
				outcome.MessageID = receipt.MessageID
			}
			return outcome, nil
		}

		c.logger.Warn("transport attempt failed",
			zap.String("transport", transport.Name()),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		attempts = append(attempts, AttemptError{Transport: transport.Name(), Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ChainError{Attempts: attempts}
}

func (c *Chain) sendOnce(ctx context.Context, transport Transport, msg Message) (*Receipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	return transport.Send(attemptCtx, msg)
}
