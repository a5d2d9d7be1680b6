package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/types"
)

const tokenLifetime = 24 * time.Hour

var errBadCredentials = errors.New("invalid credentials")

// PgIdentityService implements backend.IdentityService against the
// accounts table. The signed session token doubles as the persisted
// session for GetSession.
type PgIdentityService struct {
	conn       *sql.DB
	signingKey []byte

	mu      sync.Mutex
	current *types.Identity
}

func NewPgIdentityService(db *PgRepository, signingKey []byte) *PgIdentityService {
	return &PgIdentityService{
		conn:       db.conn,
		signingKey: signingKey,
	}
}

func (s *PgIdentityService) SignIn(ctx context.Context, email, password string) (types.Identity, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var identity types.Identity
	var passwordHash string
	if err := row.Scan(&identity.Id, &identity.Email, &passwordHash, &identity.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Identity{}, backend.NewAuthError("sign in", errBadCredentials)
		}
		return types.Identity{}, backend.NewAuthError("sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return types.Identity{}, backend.NewAuthError("sign in", errBadCredentials)
	}

	token, err := s.createToken(identity)
	if err != nil {
		return types.Identity{}, backend.NewAuthError("sign in", err)
	}
	identity.Token = token

	s.mu.Lock()
	s.current = &identity
	s.mu.Unlock()

	return identity, nil
}

func (s *PgIdentityService) GetSession(ctx context.Context) (types.Identity, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return types.Identity{}, backend.NewAuthError("get session", errors.New("no persisted session"))
	}

	if err := s.verifyToken(current.Token); err != nil {
		return types.Identity{}, backend.NewAuthError("get session", err)
	}

	return *current, nil
}

func (s *PgIdentityService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

func (s *PgIdentityService) createToken(identity types.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identity.Id.String(),
		"exp": time.Now().Add(tokenLifetime).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *PgIdentityService) verifyToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return errors.New("invalid token")
	}

	return nil
}
