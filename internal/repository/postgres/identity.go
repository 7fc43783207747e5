package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.IdentityStore = (*IdentityRepository)(nil)

const uniqueViolation = "23505"

const identityColumns = `id, kind, registration_stage, name, email, phone, date_of_birth, gender,
	organization, medical_history, assessment, constitution_profile,
	password_hash, active, contact_verified, staged_payloads,
	failed_attempts, locked_until,
	pending_code, code_expires_at, code_attempts, last_code_sent_at,
	reset_token_hash, reset_expires_at, created_at, updated_at`

type IdentityRepository struct {
	db *Connection
}

func NewIdentityRepository(db *Connection) *IdentityRepository {
	return &IdentityRepository{
		db: db,
	}
}

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to get identity by id: %w", err)
	}
	return identity, nil
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to get identity by email: %w", err)
	}
	return identity, nil
}

func (r *IdentityRepository) FindByContact(ctx context.Context, email, phone string) (model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities
			  WHERE email = $1 OR (phone IS NOT NULL AND phone = NULLIF($2, ''))
			  ORDER BY (email = $1) DESC
			  LIMIT 1`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, email, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to find identity by contact: %w", err)
	}
	return identity, nil
}

func (r *IdentityRepository) Create(ctx context.Context, identity model.Identity) (model.Identity, error) {
	query := `INSERT INTO identities (id, kind, registration_stage, name, email, phone, date_of_birth, gender,
			  organization, password_hash, staged_payloads, pending_code, code_expires_at, code_attempts, last_code_sent_at)
			  VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9::jsonb, $10, $11::jsonb, NULLIF($12, ''), $13, $14, $15)
			  RETURNING ` + identityColumns

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	organization, err := marshalNullable(identity.Organization)
	if err != nil {
		return model.Identity{}, err
	}
	staged, err := json.Marshal(stagedOrEmpty(identity.StagedPayloads))
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to marshal staged payloads: %w", err)
	}
	p := identity.Personal
	v := identity.Verification

	saved, err := scanIdentity(r.db.QueryRow(ctx, query,
		identity.ID, identity.Kind, identity.Stage, p.Name, p.Email, p.Phone, p.DateOfBirth, p.Gender,
		organization, identity.PasswordHash, string(staged), v.Code, v.ExpiresAt, v.Attempts, v.LastSentAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Identity{}, model.ErrDuplicate
		}
		return model.Identity{}, fmt.Errorf("failed to create identity: %w", err)
	}
	return saved, nil
}

func (r *IdentityRepository) Reenter(ctx context.Context, id uuid.UUID, kind model.IdentityKind, patch model.StagePatch) (model.Identity, error) {
	query := `UPDATE identities SET
				name = $3, email = $4, phone = NULLIF($5, ''), date_of_birth = $6, gender = $7,
				organization = $8::jsonb,
				medical_history = NULL, assessment = NULL, constitution_profile = NULL,
				password_hash = $9,
				pending_code = NULLIF($10, ''), code_expires_at = $11, code_attempts = $12, last_code_sent_at = $13,
				staged_payloads = jsonb_build_object($14::text, $15::jsonb),
				registration_stage = $16,
				failed_attempts = 0, locked_until = NULL,
				updated_at = NOW()
			  WHERE id = $1 AND kind = $2 AND registration_stage <> 'completed'
			  RETURNING ` + identityColumns

	if patch.Personal == nil {
		return model.Identity{}, fmt.Errorf("reenter requires personal info")
	}
	organization, err := marshalNullable(patch.Organization)
	if err != nil {
		return model.Identity{}, err
	}
	var passwordHash string
	if patch.PasswordHash != nil {
		passwordHash = *patch.PasswordHash
	}
	var v model.VerificationCode
	if patch.Verification != nil {
		v = *patch.Verification
	}
	p := patch.Personal

	identity, err := scanIdentity(r.db.QueryRow(ctx, query,
		id, kind, p.Name, p.Email, p.Phone, p.DateOfBirth, p.Gender,
		organization, passwordHash,
		v.Code, v.ExpiresAt, v.Attempts, v.LastSentAt,
		string(patch.Submitted), payloadOrEmpty(patch.StagePayload), patch.To,
	))
	if err != nil {
		return model.Identity{}, r.updateError(ctx, id, err, "reenter registration")
	}
	return identity, nil
}

func (r *IdentityRepository) AdvanceStage(ctx context.Context, id uuid.UUID, from model.Stage, patch model.StagePatch) (model.Identity, error) {
	query := `UPDATE identities SET
				medical_history = COALESCE($3::jsonb, medical_history),
				assessment = COALESCE($4::jsonb, assessment),
				constitution_profile = COALESCE($5::jsonb, constitution_profile),
				password_hash = COALESCE($6::text, password_hash),
				pending_code = CASE WHEN $7::boolean THEN NULLIF($8::text, '') ELSE pending_code END,
				code_expires_at = CASE WHEN $7 THEN $9::timestamptz ELSE code_expires_at END,
				code_attempts = CASE WHEN $7 THEN $10::integer ELSE code_attempts END,
				last_code_sent_at = CASE WHEN $7 THEN $11::timestamptz ELSE last_code_sent_at END,
				staged_payloads = CASE WHEN $12::text = '' THEN staged_payloads
					ELSE staged_payloads || jsonb_build_object($12::text, $13::jsonb) END,
				registration_stage = $14,
				updated_at = NOW()
			  WHERE id = $1 AND registration_stage = $2
			  RETURNING ` + identityColumns

	medical, err := marshalNullable(patch.Medical)
	if err != nil {
		return model.Identity{}, err
	}
	var assessment any
	if patch.Assessment != nil {
		b, err := json.Marshal(patch.Assessment)
		if err != nil {
			return model.Identity{}, fmt.Errorf("failed to marshal assessment: %w", err)
		}
		assessment = string(b)
	}
	profile, err := marshalNullable(patch.Profile)
	if err != nil {
		return model.Identity{}, err
	}
	setCode := patch.Verification != nil
	var v model.VerificationCode
	if setCode {
		v = *patch.Verification
	}
	to := patch.To
	if to == "" {
		to = from
	}

	identity, err := scanIdentity(r.db.QueryRow(ctx, query,
		id, from,
		medical, assessment, profile, patch.PasswordHash,
		setCode, v.Code, v.ExpiresAt, v.Attempts, v.LastSentAt,
		string(patch.Submitted), payloadOrEmpty(patch.StagePayload),
		to,
	))
	if err != nil {
		return model.Identity{}, r.updateError(ctx, id, err, "advance registration stage")
	}
	return identity, nil
}

func (r *IdentityRepository) RecordCodeMismatch(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	query := `UPDATE identities SET code_attempts = code_attempts + 1, updated_at = NOW()
			  WHERE id = $1 AND registration_stage = 'contact-verification' AND pending_code IS NOT NULL
			  RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return model.Identity{}, r.updateError(ctx, id, err, "record code mismatch")
	}
	return identity, nil
}

func (r *IdentityRepository) ResendCode(ctx context.Context, id uuid.UUID, code model.VerificationCode, guard model.ResendGuard) (model.Identity, error) {
	query := `UPDATE identities SET
				pending_code = $2, code_expires_at = $3, last_code_sent_at = $4,
				code_attempts = code_attempts + 1,
				updated_at = NOW()
			  WHERE id = $1 AND registration_stage = 'contact-verification'
				AND (last_code_sent_at IS NULL OR last_code_sent_at <= $5)
				AND code_attempts < $6
			  RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRow(ctx, query,
		id, code.Code, code.ExpiresAt, code.LastSentAt, guard.LastSentBefore, guard.MaxAttempts,
	))
	if err != nil {
		return model.Identity{}, r.updateError(ctx, id, err, "resend code")
	}
	return identity, nil
}

func (r *IdentityRepository) CompleteVerification(ctx context.Context, id uuid.UUID, code string, now time.Time) (model.Identity, error) {
	query := `UPDATE identities SET
				registration_stage = 'completed', active = TRUE, contact_verified = TRUE,
				pending_code = NULL, code_expires_at = NULL, code_attempts = 0, last_code_sent_at = NULL,
				staged_payloads = '{}'::jsonb,
				updated_at = NOW()
			  WHERE id = $1 AND registration_stage = 'contact-verification'
				AND pending_code = $2 AND code_expires_at >= $3
			  RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, id, code, now))
	if err != nil {
		return model.Identity{}, r.updateError(ctx, id, err, "complete verification")
	}
	return identity, nil
}

func (r *IdentityRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, policy model.LockoutPolicy) (model.Identity, error) {
	query := `UPDATE identities SET
				failed_attempts = CASE
					WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
					ELSE failed_attempts + 1 END,
				locked_until = CASE
					WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN NULL
					WHEN locked_until IS NULL AND failed_attempts + 1 >= $3 THEN $4::timestamptz
					ELSE locked_until END,
				updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRow(ctx, query,
		id, policy.Now, policy.Threshold, policy.Now.Add(policy.Duration),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to record login failure: %w", err)
	}
	return identity, nil
}

func (r *IdentityRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE identities SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
			  WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE identities SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
			  WHERE id = $1 AND registration_stage = 'completed'`

	tag, err := r.db.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missing(ctx, id)
	}
	return nil
}

func (r *IdentityRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.Identity, error) {
	query := `UPDATE identities SET
				password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL,
				failed_attempts = 0, locked_until = NULL,
				updated_at = NOW()
			  WHERE reset_token_hash = $1 AND reset_expires_at > $3
			  RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, tokenHash, passwordHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrConditionFailed
		}
		return model.Identity{}, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return identity, nil
}

// updateError maps the error of a conditional update. No returned row means
// either the record is gone or its condition did not hold.
func (r *IdentityRepository) updateError(ctx context.Context, id uuid.UUID, err error, op string) error {
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missing(ctx, id)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (r *IdentityRepository) missing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check identity existence: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrConditionFailed
}

func scanIdentity(row pgx.Row) (model.Identity, error) {
	var (
		i            model.Identity
		phone        *string
		organization []byte
		medical      []byte
		assessment   []byte
		profile      []byte
		staged       []byte
		pendingCode  *string
		resetHash    *string
	)

	err := row.Scan(
		&i.ID, &i.Kind, &i.Stage, &i.Personal.Name, &i.Personal.Email, &phone, &i.Personal.DateOfBirth, &i.Personal.Gender,
		&organization, &medical, &assessment, &profile,
		&i.PasswordHash, &i.Active, &i.ContactVerified, &staged,
		&i.FailedAttempts, &i.LockedUntil,
		&pendingCode, &i.Verification.ExpiresAt, &i.Verification.Attempts, &i.Verification.LastSentAt,
		&resetHash, &i.ResetExpiresAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return model.Identity{}, err
	}

	if phone != nil {
		i.Personal.Phone = *phone
	}
	if pendingCode != nil {
		i.Verification.Code = *pendingCode
	}
	if resetHash != nil {
		i.ResetTokenHash = *resetHash
	}
	if err := unmarshalNullable(organization, &i.Organization); err != nil {
		return model.Identity{}, err
	}
	if err := unmarshalNullable(medical, &i.Medical); err != nil {
		return model.Identity{}, err
	}
	if err := unmarshalNullable(profile, &i.Profile); err != nil {
		return model.Identity{}, err
	}
	if len(assessment) > 0 {
		if err := json.Unmarshal(assessment, &i.Assessment); err != nil {
			return model.Identity{}, fmt.Errorf("failed to unmarshal assessment: %w", err)
		}
	}
	if len(staged) > 0 {
		if err := json.Unmarshal(staged, &i.StagedPayloads); err != nil {
			return model.Identity{}, fmt.Errorf("failed to unmarshal staged payloads: %w", err)
		}
		if len(i.StagedPayloads) == 0 {
			i.StagedPayloads = nil
		}
	}

	return i, nil
}

// marshalNullable encodes v as a JSON string parameter, or nil for a nil pointer.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return string(b), nil
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	*dst = &v
	return nil
}

func stagedOrEmpty(m map[model.Stage]json.RawMessage) map[model.Stage]json.RawMessage {
	if m == nil {
		return map[model.Stage]json.RawMessage{}
	}
	return m
}

func payloadOrEmpty(p json.RawMessage) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
