// Package auth issues and validates the JWTs the staff API runs on. Two roles
// exist: SUPER_ADMIN owns parkings, tariffs and accounts, GERANT runs the
// day-to-day entry desk.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// UserSource is the slice of the user store the service needs.
type UserSource interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// Claims is the token payload. Subject carries the user ID.
type Claims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users    UserSource
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func New(users UserSource, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Login checks the password and returns a signed token with its expiry.
//
// Returns:
//   - error: ErrInvalidCredentials on unknown username or wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	const op = "service.auth.Login"

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	now := s.now()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("%s:%w", op, err)
	}

	return token, u, nil
}

// ValidateToken parses and verifies a token and returns its claims.
//
// Returns:
//   - error: ErrInvalidToken on any parse, signature or expiry failure.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	const op = "service.auth.ValidateToken"

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidToken)
	}

	return claims, nil
}

// CreateUser registers a staff account with a bcrypt-hashed password.
//
// Returns:
//   - error: ErrInvalidRole, ErrWeakPassword, ErrUsernameTaken.
func (s *Service) CreateUser(
	ctx context.Context,
	username, password string,
	role domain.Role,
) (*domain.User, error) {
	const op = "service.auth.CreateUser"

	if role != domain.RoleSuperAdmin && role != domain.RoleGerant {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRole)
	}

	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%s:%w", op, ErrWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	u, err := s.users.Create(ctx, username, string(hash), role)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrUsernameTaken)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	const op = "service.auth.ListUsers"

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return users, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	const op = "service.auth.DeleteUser"

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
