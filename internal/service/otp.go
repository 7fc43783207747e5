package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

const (
	codeMin = 100000
	codeMax = 999999

	reasonRegistration = "registration"
	reasonResend       = "resend"

	deliveryChannelCode         = "code"
	deliveryChannelNotification = "notification"

	codeDeliveryWarning = "verification code could not be delivered, request a new one"
)

// OTPPolicy configures one-time code issuance and checks.
type OTPPolicy struct {
	TTL             time.Duration
	ResendInterval  time.Duration
	MaxResends      int
	DisplayAttempts int
	DeliveryTimeout time.Duration
}

// OTP issues, resends and verifies the contact verification code.
type OTP struct {
	store    model.IdentityStore
	sender   model.CodeSender
	notifier model.NotificationSender
	tokens   *TokenService
	archive  *Archive
	metrics  model.MetricsRecorder
	logger   *logger.Logger
	policy   OTPPolicy
	now      func() time.Time
	random   io.Reader
}

func NewOTP(
	store model.IdentityStore,
	sender model.CodeSender,
	notifier model.NotificationSender,
	tokens *TokenService,
	archive *Archive,
	metrics model.MetricsRecorder,
	logger *logger.Logger,
	policy OTPPolicy,
) *OTP {
	return &OTP{
		store:    store,
		sender:   sender,
		notifier: notifier,
		tokens:   tokens,
		archive:  archive,
		metrics:  metrics,
		logger:   logger,
		policy:   policy,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// newCode returns a fresh code valid from now with a zeroed attempt counter.
func (o *OTP) newCode(now time.Time) (model.VerificationCode, error) {
	n, err := rand.Int(o.random, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("failed to generate code: %w", err)
	}
	expires := now.Add(o.policy.TTL)
	sent := now
	return model.VerificationCode{
		Code:       strconv.FormatInt(n.Int64()+codeMin, 10),
		ExpiresAt:  &expires,
		Attempts:   0,
		LastSentAt: &sent,
	}, nil
}

// Deliver sends the pending code of identity within the delivery timeout.
// A failed delivery never undoes the committed code.
func (o *OTP) Deliver(ctx context.Context, identity model.Identity, reason string) Delivery {
	ctx, cancel := withDeliveryTimeout(ctx, o.policy.DeliveryTimeout)
	defer cancel()

	data := map[string]string{
		"name":             identity.Personal.Name,
		"reason":           reason,
		"expiresInMinutes": strconv.Itoa(int(o.policy.TTL.Minutes())),
	}
	err := o.sender.SendVerificationCode(ctx, identity.Personal.Email, identity.Verification.Code, data)
	if err != nil {
		o.metrics.DeliveryFailed(deliveryChannelCode)
		o.logger.Warn("OTP service: failed to deliver code",
			"identity_id", identity.ID,
			"reason", reason,
			"error", err.Error())
		return Delivery{Delivered: false, Warning: codeDeliveryWarning}
	}
	return Delivery{Delivered: true}
}

// Verify checks code against the pending code of the record registered
// matching contact. A match completes the registration and opens a session.
func (o *OTP) Verify(ctx context.Context, contact model.Contact, code string) (Session, error) {
	session, err := o.verify(ctx, contact, code)
	o.metrics.StageSubmitted(model.StageContactVerification, outcome(err))
	return session, err
}

func (o *OTP) verify(ctx context.Context, contact model.Contact, code string) (Session, error) {
	identity, err := o.lookup(ctx, contact)
	if err != nil {
		return Session{}, err
	}

	now := o.now()
	if err := o.classifyVerify(identity, code, now); err != nil {
		if !apperrors.Is(err, apperrors.CodeCodeMismatch) {
			return Session{}, err
		}

		updated, err := o.store.RecordCodeMismatch(ctx, identity.ID)
		if err != nil {
			return Session{}, o.reclassifyVerify(ctx, identity, code, now, err)
		}
		o.logger.Info("OTP service: code mismatch",
			"identity_id", identity.ID,
			"attempts", updated.Verification.Attempts)
		return Session{}, apperrors.NewErrCodeMismatch(o.remaining(updated.Verification.Attempts))
	}

	completed, err := o.store.CompleteVerification(ctx, identity.ID, code, now)
	if err != nil {
		return Session{}, o.reclassifyVerify(ctx, identity, code, now, err)
	}

	o.logger.Info("OTP service: contact verified",
		"identity_id", completed.ID,
		"kind", completed.Kind)

	// identity still carries the payloads the completed record dropped.
	o.archive.Store(ctx, identity)

	pair, err := o.tokens.Issue(completed.ID)
	if err != nil {
		o.logger.Error("OTP service: failed to issue tokens",
			"identity_id", completed.ID,
			"error", err.Error())
		return Session{}, err
	}

	o.notify(ctx, completed, model.TemplateWelcome, map[string]string{"name": completed.Personal.Name})

	return Session{Identity: completed, Tokens: pair}, nil
}

// Resend replaces the pending code of the record matching contact.
func (o *OTP) Resend(ctx context.Context, contact model.Contact) (StageResult, error) {
	identity, err := o.lookup(ctx, contact)
	if err != nil {
		return StageResult{}, err
	}
	if err := checkVerificationStage(identity); err != nil {
		return StageResult{}, err
	}

	now := o.now()
	if err := o.checkResend(identity, now); err != nil {
		return StageResult{}, err
	}

	code, err := o.newCode(now)
	if err != nil {
		return StageResult{}, err
	}

	updated, err := o.store.ResendCode(ctx, identity.ID, code, model.ResendGuard{
		LastSentBefore: now.Add(-o.policy.ResendInterval),
		MaxAttempts:    o.policy.MaxResends,
	})
	if err != nil {
		if !errors.Is(err, model.ErrConditionFailed) {
			o.logger.Error("OTP service: failed to store resent code",
				"identity_id", identity.ID,
				"error", err.Error())
			return StageResult{}, fmt.Errorf("failed to resend code: %w", err)
		}
		current, lookupErr := o.lookup(ctx, contact)
		if lookupErr != nil {
			return StageResult{}, lookupErr
		}
		if err := checkVerificationStage(current); err != nil {
			return StageResult{}, err
		}
		if err := o.checkResend(current, now); err != nil {
			return StageResult{}, err
		}
		return StageResult{}, fmt.Errorf("resend condition changed concurrently: %w", err)
	}

	o.metrics.CodeIssued(reasonResend)
	o.logger.Info("OTP service: code resent",
		"identity_id", updated.ID,
		"attempts", updated.Verification.Attempts)

	result := newStageResult(updated)
	d := o.Deliver(ctx, updated, reasonResend)
	result.Delivery = &d
	return result, nil
}

func (o *OTP) lookup(ctx context.Context, contact model.Contact) (model.Identity, error) {
	identity, err := o.store.FindByContact(ctx, contact.Email, contact.Phone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Identity{}, apperrors.NewErrRecordNotFound()
		}
		o.logger.Error("OTP service: failed to get identity",
			"error", err.Error())
		return model.Identity{}, fmt.Errorf("failed to get identity: %w", err)
	}
	return identity, nil
}

// classifyVerify returns the error a verification of code would fail with, or nil.
func (o *OTP) classifyVerify(identity model.Identity, code string, now time.Time) error {
	if err := checkVerificationStage(identity); err != nil {
		return err
	}
	v := identity.Verification
	if !v.Pending() {
		return apperrors.NewErrNoPendingCode()
	}
	if v.ExpiresAt == nil || now.After(*v.ExpiresAt) {
		return apperrors.NewErrCodeExpired()
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		return apperrors.NewErrCodeMismatch(o.remaining(v.Attempts))
	}
	return nil
}

// reclassifyVerify explains a failed conditional write by re-reading the record.
func (o *OTP) reclassifyVerify(ctx context.Context, identity model.Identity, code string, now time.Time, cause error) error {
	if !errors.Is(cause, model.ErrConditionFailed) && !errors.Is(cause, model.ErrNotFound) {
		o.logger.Error("OTP service: failed to update verification state",
			"identity_id", identity.ID,
			"error", cause.Error())
		return fmt.Errorf("failed to update verification state: %w", cause)
	}

	current, err := o.lookup(ctx, model.Contact{Email: identity.Personal.Email})
	if err != nil {
		return err
	}
	if err := o.classifyVerify(current, code, now); err != nil {
		return err
	}
	return fmt.Errorf("verification state changed concurrently: %w", cause)
}

func (o *OTP) checkResend(identity model.Identity, now time.Time) error {
	v := identity.Verification
	if v.LastSentAt != nil {
		if elapsed := now.Sub(*v.LastSentAt); elapsed < o.policy.ResendInterval {
			return apperrors.NewErrTooFrequent(o.policy.ResendInterval - elapsed)
		}
	}
	if v.Attempts >= o.policy.MaxResends {
		return apperrors.NewErrDailyLimitReached(o.policy.MaxResends)
	}
	return nil
}

func (o *OTP) remaining(attempts int) int {
	return max(0, o.policy.DisplayAttempts-attempts)
}

func (o *OTP) notify(ctx context.Context, identity model.Identity, template string, data map[string]string) {
	ctx, cancel := withDeliveryTimeout(ctx, o.policy.DeliveryTimeout)
	defer cancel()

	if err := o.notifier.SendNotification(ctx, identity.Personal.Email, template, data); err != nil {
		o.metrics.DeliveryFailed(deliveryChannelNotification)
		o.logger.Warn("OTP service: failed to send notification",
			"identity_id", identity.ID,
			"template", template,
			"error", err.Error())
	}
}

// checkVerificationStage rejects records that are not waiting for a code.
func checkVerificationStage(identity model.Identity) error {
	switch {
	case identity.Stage.Terminal():
		return apperrors.NewErrAlreadyVerified()
	case identity.Stage != model.StageContactVerification:
		return apperrors.NewErrStageMismatch(string(identity.Stage), string(model.StageContactVerification))
	}
	return nil
}
