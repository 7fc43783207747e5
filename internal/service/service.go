// Package service implements registration, verification and authentication.
package service

import (
	"context"
	"time"

	"github.com/dtroode/prakriti-server/internal/model"
)

const defaultDeliveryTimeout = 5 * time.Second

// Session is an identity together with a freshly issued token pair.
type Session struct {
	Identity model.Identity
	Tokens   model.TokenPair
}

// Delivery reports the soft outcome of an outbound message.
type Delivery struct {
	Delivered bool
	Warning   string
}

// StageResult is the outcome of a registration stage submission.
type StageResult struct {
	Identity  model.Identity
	NextStage model.Stage
	Progress  int
	// Delivery is set when the submission issued a verification code.
	Delivery *Delivery
}

func newStageResult(identity model.Identity) StageResult {
	return StageResult{
		Identity:  identity,
		NextStage: identity.Stage,
		Progress:  identity.Stage.Progress(),
	}
}

func outcome(err error) string {
	if err != nil {
		return model.OutcomeRejected
	}
	return model.OutcomeSuccess
}

// withDeliveryTimeout bounds an outbound delivery. A non-positive d uses the default.
func withDeliveryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultDeliveryTimeout
	}
	return context.WithTimeout(ctx, d)
}
