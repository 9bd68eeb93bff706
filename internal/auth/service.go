package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/estaciona/parkops-server/internal/apperr"
	"github.com/estaciona/parkops-server/internal/models"
	"github.com/estaciona/parkops-server/internal/store"
)

// Classified session errors. All of them cross the error boundary as
// user-correctable auth failures.
var (
	ErrDuplicateEmail    = apperr.Auth("a user with this email already exists")
	ErrUserNotFound      = apperr.Auth("invalid email or password")
	ErrInvalidCredential = apperr.Auth("invalid email or password")
	ErrNotAuthenticated  = apperr.Auth("not authenticated")
	ErrInsufficientRole  = apperr.Auth("you do not have permission for this action")
)

// Bootstrap accounts seeded on first run.
const (
	seedAdminEmail       = "admin@estacionamiento.com"
	seedAdminPassword    = "admin123"
	seedOperatorEmail    = "operador@estacionamiento.com"
	seedOperatorPassword = "operador123"
)

// Service defines the session manager operations.
type Service interface {
	Register(ctx context.Context, req models.SignUpRequest) (*models.PublicUser, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.CurrentUser, error)
	Logout(ctx context.Context, token string) error
	CheckAuth(ctx context.Context, token string) (*models.CurrentUser, error)
	CheckRole(ctx context.Context, token string, required models.Role) (*models.CurrentUser, error)
	TokenDuration() time.Duration
}

// Manager implements Service. All session and user mutations run under one
// mutex, so no partial state is ever observable.
type Manager struct {
	mu            sync.Mutex
	store         store.Store
	jwtSecret     []byte
	tokenDuration time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager creates a session manager backed by st.
func NewManager(st store.Store, jwtSecret string, logger *zap.Logger) *Manager {
	return &Manager{
		store:         st,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours session validity
		logger:        logger,
		now:           time.Now,
	}
}

// Bootstrap seeds the two default accounts and an empty session list on
// first run. Existing documents are left untouched.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []models.User
	ok, err := store.Load(ctx, m.store, store.KeyUsers, &users)
	if err != nil {
		return fmt.Errorf("error loading users: %w", err)
	}

	if !ok {
		now := m.now().UTC()
		adminHash, err := hashPassword(seedAdminPassword)
		if err != nil {
			return fmt.Errorf("error hashing seed password: %w", err)
		}
		operatorHash, err := hashPassword(seedOperatorPassword)
		if err != nil {
			return fmt.Errorf("error hashing seed password: %w", err)
		}

		users = []models.User{
			{
				ID:           uuid.New().String(),
				Email:        seedAdminEmail,
				PasswordHash: adminHash,
				Name:         "Administrador",
				Role:         models.RoleAdmin,
				CreatedAt:    now,
				IsActive:     true,
			},
			{
				ID:           uuid.New().String(),
				Email:        seedOperatorEmail,
				PasswordHash: operatorHash,
				Name:         "Operador",
				Role:         models.RoleOperator,
				CreatedAt:    now,
				IsActive:     true,
			},
		}
		if err := m.store.Set(ctx, store.KeyUsers, users); err != nil {
			return fmt.Errorf("error seeding users: %w", err)
		}
		m.logger.Info("seeded default accounts", zap.Int("count", len(users)))
	}

	var sessions []models.Session
	ok, err = store.Load(ctx, m.store, store.KeySessions, &sessions)
	if err != nil {
		return fmt.Errorf("error loading sessions: %w", err)
	}
	if !ok {
		if err := m.store.Set(ctx, store.KeySessions, []models.Session{}); err != nil {
			return fmt.Errorf("error seeding sessions: %w", err)
		}
	}

	return nil
}

// TokenDuration returns how long issued sessions remain valid.
func (m *Manager) TokenDuration() time.Duration {
	return m.tokenDuration
}

// Register creates a new operator account. Role elevation is not
// self-service, so the role is always operator.
func (m *Manager) Register(ctx context.Context, req models.SignUpRequest) (*models.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []models.User
	if _, err := store.Load(ctx, m.store, store.KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("error loading users: %w", err)
	}

	// Duplicate check covers inactive accounts too
	for _, u := range users {
		if u.Email == req.Email {
			return nil, ErrDuplicateEmail
		}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         models.RoleOperator,
		CreatedAt:    m.now().UTC(),
		IsActive:     true,
	}

	users = append(users, user)
	if err := m.store.Set(ctx, store.KeyUsers, users); err != nil {
		return nil, fmt.Errorf("error saving users: %w", err)
	}

	pub := user.Public()
	return &pub, nil
}

// Login verifies the credential against the active user set and opens a new
// session valid for the token duration.
func (m *Manager) Login(ctx context.Context, req models.LoginRequest) (*models.CurrentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []models.User
	if _, err := store.Load(ctx, m.store, store.KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("error loading users: %w", err)
	}

	var user *models.User
	for i := range users {
		if users[i].Email == req.Email && users[i].IsActive {
			user = &users[i]
			break
		}
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !validatePassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}

	now := m.now().UTC()
	sessionID := uuid.New().String()
	token, err := m.mintToken(user.ID, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	session := models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.tokenDuration),
	}

	var sessions []models.Session
	if _, err := store.Load(ctx, m.store, store.KeySessions, &sessions); err != nil {
		return nil, fmt.Errorf("error loading sessions: %w", err)
	}
	sessions = append(sessions, session)
	if err := m.store.Set(ctx, store.KeySessions, sessions); err != nil {
		return nil, fmt.Errorf("error saving sessions: %w", err)
	}

	return &models.CurrentUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		Token: token,
	}, nil
}

// Logout removes the session holding token. Calling it without a matching
// session is not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeSession(ctx, token)
}

// CheckAuth returns the identity behind token only while a matching,
// non-expired session exists. An expired session is removed on detection;
// there is no background sweep, so this lazy check runs on every read.
func (m *Manager) CheckAuth(ctx context.Context, token string) (*models.CurrentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	var sessions []models.Session
	if _, err := store.Load(ctx, m.store, store.KeySessions, &sessions); err != nil {
		return nil, fmt.Errorf("error loading sessions: %w", err)
	}

	var session *models.Session
	for i := range sessions {
		if sessions[i].Token == token {
			session = &sessions[i]
			break
		}
	}
	if session == nil {
		return nil, nil
	}

	if !session.ExpiresAt.After(m.now()) {
		// Implicit logout of the stale session
		if err := m.removeSession(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var users []models.User
	if _, err := store.Load(ctx, m.store, store.KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("error loading users: %w", err)
	}

	for i := range users {
		if users[i].ID == session.UserID && users[i].IsActive {
			u := users[i]
			return &models.CurrentUser{
				ID:    u.ID,
				Email: u.Email,
				Name:  u.Name,
				Role:  u.Role,
				Token: token,
			}, nil
		}
	}

	return nil, nil
}

// CheckRole authenticates token and verifies the role requirement. Admin
// satisfies every requirement.
func (m *Manager) CheckRole(ctx context.Context, token string, required models.Role) (*models.CurrentUser, error) {
	user, err := m.CheckAuth(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	if !models.RoleSatisfies(required, user.Role) {
		return nil, ErrInsufficientRole
	}
	return user, nil
}

// removeSession filters the session holding token out of storage. Callers
// hold the mutex.
func (m *Manager) removeSession(ctx context.Context, token string) error {
	var sessions []models.Session
	if _, err := store.Load(ctx, m.store, store.KeySessions, &sessions); err != nil {
		return fmt.Errorf("error loading sessions: %w", err)
	}

	kept := sessions[:0]
	removed := false
	for _, s := range sessions {
		if s.Token == token {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	if !removed {
		return nil
	}

	if err := m.store.Set(ctx, store.KeySessions, kept); err != nil {
		return fmt.Errorf("error saving sessions: %w", err)
	}
	return nil
}

// mintToken signs an HS256 token whose claims mix a random session id with
// time-derived issue/expiry components, so tokens are never fixed or
// sequential. Validity is still decided by the stored session.
func (m *Manager) mintToken(userID, sessionID string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(m.tokenDuration).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

func hashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validatePassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
