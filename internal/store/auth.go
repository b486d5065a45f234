package store

import (
	"context"
	"time"

	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/model"
)

var _ auth.Store = (*Store)(nil)

// UpsertUserByEmail implements auth.Store.
func (s *Store) UpsertUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.conn.QueryRow(ctx, `
		INSERT INTO users (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = excluded.email
		RETURNING id, email, created_at`, email,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return model.User{}, wrap("upsert user by email", err)
	}
	return u, nil
}

// FindRecipientByIdentity implements auth.Store.
func (s *Store) FindRecipientByIdentity(ctx context.Context, emailOrID string) (string, bool, error) {
	var id string
	err := s.conn.QueryRow(ctx, `
		SELECT id FROM recipients WHERE id = $1 OR email = lower($1)`, emailOrID,
	).Scan(&id)
	if err != nil {
		if err := mapRowErr(err); err == ErrNotFound {
			return "", false, nil
		}
		return "", false, wrap("find recipient by identity", err)
	}
	return id, true, nil
}

// DeleteActiveOTPsForRecipient implements auth.Store.
func (s *Store) DeleteActiveOTPsForRecipient(ctx context.Context, recipientID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM recipient_otps WHERE recipient_id = $1`, recipientID)
	return wrap("delete active otps for recipient", err)
}

// CreateOTP implements auth.Store.
func (s *Store) CreateOTP(ctx context.Context, otp model.RecipientOtp) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO recipient_otps (recipient_id, code_hash, attempts, expires_at)
		VALUES ($1, $2, $3, $4)`,
		otp.RecipientID, otp.CodeHash, otp.Attempts, otp.ExpiresAt)
	return wrap("create otp", err)
}

// FindOTPByHash implements auth.Store.
func (s *Store) FindOTPByHash(ctx context.Context, codeHash string) (model.RecipientOtp, bool, error) {
	var o model.RecipientOtp
	err := s.conn.QueryRow(ctx, `
		SELECT id, recipient_id, code_hash, attempts, expires_at, created_at
		FROM recipient_otps WHERE code_hash = $1`, codeHash,
	).Scan(&o.ID, &o.RecipientID, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.CreatedAt)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.RecipientOtp{}, false, nil
		}
		return model.RecipientOtp{}, false, wrap("find otp by hash", err)
	}
	return o, true, nil
}

// IncrementOTPAttempts implements auth.Store.
func (s *Store) IncrementOTPAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.conn.QueryRow(ctx, `
		UPDATE recipient_otps SET attempts = attempts + 1 WHERE id = $1
		RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, wrap("increment otp attempts", mapRowErr(err))
	}
	return attempts, nil
}

// DeleteOTP implements auth.Store.
func (s *Store) DeleteOTP(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM recipient_otps WHERE id = $1`, id)
	return wrap("delete otp", err)
}

// CreateRecipientSession implements auth.Store.
func (s *Store) CreateRecipientSession(ctx context.Context, sess model.RecipientSession) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO recipient_sessions (recipient_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`,
		sess.RecipientID, sess.TokenHash, sess.ExpiresAt)
	return wrap("create recipient session", err)
}

// FindRecipientSessionByHash implements auth.Store.
func (s *Store) FindRecipientSessionByHash(ctx context.Context, tokenHash string) (model.RecipientSession, bool, error) {
	var sess model.RecipientSession
	err := s.conn.QueryRow(ctx, `
		SELECT id, recipient_id, token_hash, expires_at, created_at, revoked_at
		FROM recipient_sessions WHERE token_hash = $1`, tokenHash,
	).Scan(&sess.ID, &sess.RecipientID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.RevokedAt)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.RecipientSession{}, false, nil
		}
		return model.RecipientSession{}, false, wrap("find recipient session by hash", err)
	}
	return sess, true, nil
}

// RevokeRecipientSession implements auth.Store.
func (s *Store) RevokeRecipientSession(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `UPDATE recipient_sessions SET revoked_at = now() WHERE id = $1`, id)
	return wrap("revoke recipient session", err)
}

// CreateMagicLink implements auth.Store.
func (s *Store) CreateMagicLink(ctx context.Context, link model.MagicLink) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO magic_links (email, token_hash, expires_at)
		VALUES ($1, $2, $3)`,
		link.Email, link.TokenHash, link.ExpiresAt)
	return wrap("create magic link", err)
}

// FindMagicLinkByHash implements auth.Store.
func (s *Store) FindMagicLinkByHash(ctx context.Context, tokenHash string) (model.MagicLink, bool, error) {
	var l model.MagicLink
	err := s.conn.QueryRow(ctx, `
		SELECT id, email, token_hash, expires_at, consumed_at, created_at
		FROM magic_links WHERE token_hash = $1`, tokenHash,
	).Scan(&l.ID, &l.Email, &l.TokenHash, &l.ExpiresAt, &l.ConsumedAt, &l.CreatedAt)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.MagicLink{}, false, nil
		}
		return model.MagicLink{}, false, wrap("find magic link by hash", err)
	}
	return l, true, nil
}

// ConsumeMagicLink implements auth.Store.
func (s *Store) ConsumeMagicLink(ctx context.Context, id string, consumedAt time.Time) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE magic_links SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, id, consumedAt)
	return wrap("consume magic link", err)
}

// CreateAdminSession implements auth.Store.
func (s *Store) CreateAdminSession(ctx context.Context, sess model.Session) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`,
		sess.UserID, sess.TokenHash, sess.ExpiresAt)
	return wrap("create admin session", err)
}

// FindAdminSessionByHash implements auth.Store.
func (s *Store) FindAdminSessionByHash(ctx context.Context, tokenHash string) (model.Session, bool, error) {
	var sess model.Session
	err := s.conn.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM sessions WHERE token_hash = $1`, tokenHash,
	).Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.RevokedAt)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, wrap("find admin session by hash", err)
	}
	return sess, true, nil
}

// RevokeAdminSession implements auth.Store.
func (s *Store) RevokeAdminSession(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE id = $1`, id)
	return wrap("revoke admin session", err)
}

// CreateDeviceAuth implements auth.Store.
func (s *Store) CreateDeviceAuth(ctx context.Context, da model.DeviceAuth) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO device_auths
			(device_code_hash, user_code, device_name, status, interval_seconds, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		da.DeviceCodeHash, da.UserCode, da.DeviceName, da.Status, da.IntervalSeconds, da.ExpiresAt)
	return wrap("create device auth", err)
}

// FindDeviceAuthByUserCode implements auth.Store.
func (s *Store) FindDeviceAuthByUserCode(ctx context.Context, userCode string) (model.DeviceAuth, bool, error) {
	return s.findDeviceAuth(ctx, "user_code = $1", userCode)
}

// FindDeviceAuthByDeviceCodeHash implements auth.Store.
func (s *Store) FindDeviceAuthByDeviceCodeHash(ctx context.Context, hash string) (model.DeviceAuth, bool, error) {
	return s.findDeviceAuth(ctx, "device_code_hash = $1", hash)
}

func (s *Store) findDeviceAuth(ctx context.Context, whereClause, arg string) (model.DeviceAuth, bool, error) {
	var da model.DeviceAuth
	err := s.conn.QueryRow(ctx, `
		SELECT id, device_code_hash, user_code, device_name, status, approved_by_user,
		       interval_seconds, last_poll_at, expires_at, created_at, issued_token_id
		FROM device_auths WHERE `+whereClause, arg,
	).Scan(&da.ID, &da.DeviceCodeHash, &da.UserCode, &da.DeviceName, &da.Status, &da.ApprovedByUser,
		&da.IntervalSeconds, &da.LastPollAt, &da.ExpiresAt, &da.CreatedAt, &da.IssuedTokenID)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.DeviceAuth{}, false, nil
		}
		return model.DeviceAuth{}, false, wrap("find device auth", err)
	}
	return da, true, nil
}

// ApproveDeviceAuth implements auth.Store.
func (s *Store) ApproveDeviceAuth(ctx context.Context, id, approvedByUserID, issuedTokenID string) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE device_auths
		SET status = 'APPROVED', approved_by_user = $2, issued_token_id = $3
		WHERE id = $1`,
		id, approvedByUserID, issuedTokenID)
	return wrap("approve device auth", err)
}

// TouchDeviceAuthPoll implements auth.Store.
func (s *Store) TouchDeviceAuthPoll(ctx context.Context, id string, at time.Time) error {
	_, err := s.conn.Exec(ctx, `UPDATE device_auths SET last_poll_at = $2 WHERE id = $1`, id, at)
	return wrap("touch device auth poll", err)
}

// CreateAPIToken implements auth.Store.
func (s *Store) CreateAPIToken(ctx context.Context, tok model.ApiToken) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO api_tokens (id, user_id, name, token_hash, prefix, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tok.ID, tok.UserID, tok.Name, tok.TokenHash, tok.Prefix, tok.Scopes, tok.ExpiresAt)
	return wrap("create api token", err)
}

// FindAPITokenByHash implements auth.Store.
func (s *Store) FindAPITokenByHash(ctx context.Context, tokenHash string) (model.ApiToken, bool, error) {
	var t model.ApiToken
	err := s.conn.QueryRow(ctx, `
		SELECT id, user_id, name, token_hash, prefix, scopes, expires_at, created_at, revoked_at, last_used_at
		FROM api_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Prefix, &t.Scopes, &t.ExpiresAt, &t.CreatedAt, &t.RevokedAt, &t.LastUsedAt)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.ApiToken{}, false, nil
		}
		return model.ApiToken{}, false, wrap("find api token by hash", err)
	}
	return t, true, nil
}

// ListAPITokensForUser implements auth.Store.
func (s *Store) ListAPITokensForUser(ctx context.Context, userID string) ([]model.ApiToken, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, name, token_hash, prefix, scopes, expires_at, created_at, revoked_at, last_used_at
		FROM api_tokens WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrap("list api tokens for user", err)
	}
	defer rows.Close()

	var out []model.ApiToken
	for rows.Next() {
		var t model.ApiToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Prefix, &t.Scopes, &t.ExpiresAt, &t.CreatedAt, &t.RevokedAt, &t.LastUsedAt); err != nil {
			return nil, wrap("scan api token", err)
		}
		out = append(out, t)
	}
	return out, wrap("iterate api tokens", rows.Err())
}

// RevokeAPIToken implements auth.Store.
func (s *Store) RevokeAPIToken(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `UPDATE api_tokens SET revoked_at = now() WHERE id = $1`, id)
	return wrap("revoke api token", err)
}

// TouchAPITokenLastUsed implements auth.Store.
func (s *Store) TouchAPITokenLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.conn.Exec(ctx, `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	return wrap("touch api token last used", err)
}
