package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"marketchat/internal/chat/repository"
	"marketchat/internal/common"
	"marketchat/internal/config"
	"marketchat/internal/dbmysql"
)

var (
	ErrInvalidToken       = errors.New("invalid session token")
	ErrInvalidCredentials = errors.New("invalid handle or password")
)

// Claims carries the authenticated user identity inside the session token.
type Claims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens. The signing secret is
// injected so tests and multiple instances never share hidden state.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  repository.UserRepository
}

func NewManager(cfg *config.Config, users repository.UserRepository) *Manager {
	return &Manager{
		secret: []byte(cfg.Session.Secret),
		issuer: cfg.Session.Issuer,
		ttl:    time.Duration(cfg.Session.TTLHours) * time.Hour,
		users:  users,
	}
}

// IssueToken builds a signed session token for the user.
func (m *Manager) IssueToken(userID, handle string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Handle: handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   "user-auth",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyToken parses and validates a session token and returns its claims.
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Login checks the credentials and returns the user with a fresh token.
func (m *Manager) Login(ctx context.Context, handle, password string) (*dbmysql.User, string, error) {
	user, err := m.users.ByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("look up user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := m.IssueToken(user.ID, user.Handle)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Register creates a new account and returns it with a fresh token.
func (m *Manager) Register(ctx context.Context, handle, displayName, password string) (*dbmysql.User, string, error) {
	if err := common.ValidateHandle(handle); err != nil {
		return nil, "", err
	}
	if err := common.ValidatePassword(password); err != nil {
		return nil, "", err
	}

	if _, err := m.users.ByHandle(ctx, handle); err == nil {
		return nil, "", errors.New("handle is already taken")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("look up handle: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &dbmysql.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := m.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := m.IssueToken(user.ID, user.Handle)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckPassword(password, hashedPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
