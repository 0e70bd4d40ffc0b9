package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/emrecunlu/trello-clone/model"
)

const LocalProvider = "local"

const userColumns = `id, email, provider, name, avatar_url, created_unix`

func scanUser(row interface{ Scan(...any) error }, extra ...any) (model.User, error) {
	var u model.User
	var created int64
	dst := append([]any{&u.ID, &u.Email, &u.Provider, &u.Name, &u.AvatarURL, &created}, extra...)
	if err := row.Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

// CreateUser registers a password account. Emails are stored lower-cased;
// ErrConflict means the email is taken in any letter case.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (model.User, error) {
	var u model.User
	err := s.withTx(ctx, func(tx *Tx) error {
		var err error
		u, err = tx.insertUser(ctx, email, LocalProvider, name, "", passwordHash)
		return err
	})
	if ConstraintViolation(err) {
		return model.User{}, ErrConflict
	}
	return u, err
}

func (t *Tx) insertUser(ctx context.Context, email, provider, name, avatar, passwordHash string) (model.User, error) {
	u := model.User{
		ID:        ulid.Make().String(),
		Email:     normalizeEmail(email),
		Provider:  provider,
		Name:      name,
		AvatarURL: avatar,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := t.exec(ctx, `insert into users(id, email, provider, name, avatar_url, password_hash, created_unix) values(?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Provider, u.Name, u.AvatarURL, passwordHash, u.CreatedAt.Unix())
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertUser links an external sign-in to a user keyed by (email, provider),
// refreshing the profile fields when the user already exists.
func (s *Store) UpsertUser(ctx context.Context, email, provider, name, avatarURL string) (model.User, error) {
	var u model.User
	err := s.withTx(ctx, func(tx *Tx) error {
		have, err := scanUser(tx.queryRow(ctx,
			`select `+userColumns+` from users where lower(email)=? and provider=?`, normalizeEmail(email), provider))
		switch {
		case errors.Is(err, ErrNotFound):
			u, err = tx.insertUser(ctx, email, provider, name, avatarURL, "")
			return err
		case err != nil:
			return err
		}
		if have.Name != name || have.AvatarURL != avatarURL {
			if _, err := tx.exec(ctx, `update users set name=?, avatar_url=? where id=?`, name, avatarURL, have.ID); err != nil {
				return err
			}
			have.Name, have.AvatarURL = name, avatarURL
		}
		u = have
		return nil
	})
	return u, err
}

func (s *Store) UserByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, rebind(s.dialect, `select `+userColumns+` from users where id=?`), id))
}

// Authenticate verifies a local password and returns the user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx,
		rebind(s.dialect, `select `+userColumns+`, password_hash from users where lower(email)=? and provider=?`),
		normalizeEmail(email), LocalProvider), &hash)
	if err != nil {
		return model.User{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	// 32 random bytes, base64 URL encoded
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	expires := time.Now().Add(ttl)
	_, err := s.db.ExecContext(ctx, rebind(s.dialect, `insert into sessions(token, user_id, expires_unix) values(?,?,?)`),
		token, userID, expires.Unix())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (s *Store) UserBySession(ctx context.Context, token string) (model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, rebind(s.dialect,
		`select u.id, u.email, u.provider, u.name, u.avatar_url, u.created_unix
		from sessions s join users u on u.id=s.user_id
		where s.token=? and s.expires_unix > ?`), token, time.Now().Unix()))
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, rebind(s.dialect, `delete from sessions where token=?`), token)
	return err
}
