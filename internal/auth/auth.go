package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filltrip/internal/database"
	"filltrip/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUsernameTaken      = errors.New("this username is already taken")
	ErrUnauthenticated    = errors.New("not authenticated")
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationError maps form fields to messages
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SignupRequest is the registration form
type SignupRequest struct {
	FullName        string `json:"fullName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`

	// ConfirmRequired makes an empty ConfirmPassword a validation error.
	// The signup page sets it; JSON clients may omit the confirmation.
	ConfirmRequired bool `json:"-"`
}

// Validate applies the signup form rules. ConfirmPassword is checked when
// provided or required.
func (r SignupRequest) Validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(r.FullName) == "" {
		fields["fullName"] = "Full name is required"
	}

	switch username := strings.TrimSpace(r.Username); {
	case username == "":
		fields["username"] = "Username is required"
	case len([]rune(username)) < MinUsernameLength:
		fields["username"] = fmt.Sprintf("Username must be at least %d characters", MinUsernameLength)
	}

	switch email := strings.TrimSpace(r.Email); {
	case email == "":
		fields["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		fields["email"] = "Please enter a valid email address"
	}

	switch {
	case r.Password == "":
		fields["password"] = "Password is required"
	case len(r.Password) < MinPasswordLength:
		fields["password"] = fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}

	switch {
	case r.ConfirmPassword == "" && r.ConfirmRequired:
		fields["confirmPassword"] = "Please confirm your password"
	case r.ConfirmPassword != "" && r.ConfirmPassword != r.Password:
		fields["confirmPassword"] = "Passwords do not match"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Service handles accounts and login sessions
type Service struct {
	users    database.UserRepository
	sessions database.SessionRepository
	ttl      time.Duration
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates an auth service over the given store
func NewService(store database.DataStore, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		users:    store.Users(),
		sessions: store.Sessions(),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		log:      log.Named("auth"),
	}
}

// Signup validates and registers a new account. It does not log in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		FullName:     strings.TrimSpace(req.FullName),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, database.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("account created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks credentials and opens a session
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", zap.Int64("user_id", user.ID))
		return nil, nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to open session: %w", err)
	}

	s.log.Info("login", zap.Int64("user_id", user.ID))
	return session, user, nil
}

// Logout ends the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// CurrentUser resolves a session token to its user
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	return user, err
}

// PurgeExpired removes sessions past their expiry
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}
