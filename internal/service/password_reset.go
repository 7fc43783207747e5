package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

const resetTokenBytes = 32

// ResetPolicy configures password reset tokens.
type ResetPolicy struct {
	TTL             time.Duration
	LinkURL         string
	DeliveryTimeout time.Duration
}

// PasswordReset issues and consumes single-use password reset tokens.
type PasswordReset struct {
	store    model.IdentityStore
	hasher   model.PasswordHasher
	notifier model.NotificationSender
	metrics  model.MetricsRecorder
	logger   *logger.Logger
	policy   ResetPolicy
	now      func() time.Time
	random   io.Reader

	// pending tracks reset links still being delivered.
	pending sync.WaitGroup
}

func NewPasswordReset(
	store model.IdentityStore,
	hasher model.PasswordHasher,
	notifier model.NotificationSender,
	metrics model.MetricsRecorder,
	logger *logger.Logger,
	policy ResetPolicy,
) *PasswordReset {
	return &PasswordReset{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		policy:   policy,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// RequestReset sends a reset link to a completed identity. Unknown or
// unfinished accounts are ignored so callers cannot tell them apart. The
// link is delivered in the background so the call takes about as long
// for every email; Wait blocks until pending deliveries finish.
func (p *PasswordReset) RequestReset(ctx context.Context, email string) error {
	identity, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.logger.Debug("Password reset: unknown email")
			return nil
		}
		p.logger.Error("Password reset: failed to get identity",
			"error", err.Error())
		return fmt.Errorf("failed to get identity: %w", err)
	}
	if !identity.Stage.Terminal() {
		p.logger.Debug("Password reset: registration not completed",
			"identity_id", identity.ID)
		return nil
	}

	token, err := p.newToken()
	if err != nil {
		return err
	}

	expiresAt := p.now().Add(p.policy.TTL)
	if err := p.store.SetResetToken(ctx, identity.ID, hashResetToken(token), expiresAt); err != nil {
		if errors.Is(err, model.ErrConditionFailed) || errors.Is(err, model.ErrNotFound) {
			return nil
		}
		p.logger.Error("Password reset: failed to store token",
			"identity_id", identity.ID,
			"error", err.Error())
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	data := map[string]string{
		"name":             identity.Personal.Name,
		"token":            token,
		"link":             p.link(token),
		"expiresInMinutes": strconv.Itoa(int(p.policy.TTL.Minutes())),
	}
	deliveryCtx := context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.notify(deliveryCtx, identity, model.TemplatePasswordReset, data)
	}()

	p.logger.Info("Password reset: token issued",
		"identity_id", identity.ID)
	return nil
}

// Wait blocks until every reset link handed to the background has been
// delivered or has failed.
func (p *PasswordReset) Wait() {
	p.pending.Wait()
}

// ResetPassword consumes token and sets a new password. Consuming a token
// also clears any login lockout.
func (p *PasswordReset) ResetPassword(ctx context.Context, token, newPassword string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, apperrors.NewErrInvalidResetToken()
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		p.logger.Error("Password reset: failed to hash password",
			"error", err.Error())
		return model.Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	identity, err := p.store.ConsumeResetToken(ctx, hashResetToken(token), hash, p.now())
	if err != nil {
		if errors.Is(err, model.ErrConditionFailed) {
			return model.Identity{}, apperrors.NewErrInvalidResetToken()
		}
		p.logger.Error("Password reset: failed to consume token",
			"error", err.Error())
		return model.Identity{}, fmt.Errorf("failed to consume reset token: %w", err)
	}

	p.notify(ctx, identity, model.TemplatePasswordChanged, map[string]string{
		"name": identity.Personal.Name,
	})

	p.logger.Info("Password reset: password changed",
		"identity_id", identity.ID)
	return identity, nil
}

func (p *PasswordReset) newToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(p.random, b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (p *PasswordReset) link(token string) string {
	u, err := url.Parse(p.policy.LinkURL)
	if err != nil || p.policy.LinkURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *PasswordReset) notify(ctx context.Context, identity model.Identity, template string, data map[string]string) {
	ctx, cancel := withDeliveryTimeout(ctx, p.policy.DeliveryTimeout)
	defer cancel()

	if err := p.notifier.SendNotification(ctx, identity.Personal.Email, template, data); err != nil {
		p.metrics.DeliveryFailed(deliveryChannelNotification)
		p.logger.Warn("Password reset: failed to send notification",
			"identity_id", identity.ID,
			"template", template,
			"error", err.Error())
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
