package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/auth"
	"github.com/dmitrijs2005/fittrack/internal/server/config"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fittrack/internal/server/throttle"
)

const (
	defaultStoreTimeout = 5 * time.Second

	maxUsernameLen    = 64
	minPasswordLength = 8
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *auth.SessionTokens
	throttle    throttle.Throttle
	bcryptCost  int
	timeout     time.Duration
	logger      logging.Logger

	// dummyHash is compared against when the identifier is unknown, so a
	// miss costs the same as a wrong password.
	dummyHash string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	sessions *auth.SessionTokens, t throttle.Throttle, l logging.Logger) (*UserService, error) {

	dummy, err := auth.HashPassword("fittrack-dummy-password", cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	timeout := cfg.DatabaseTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &UserService{
		db:          db,
		repomanager: m,
		sessions:    sessions,
		throttle:    t,
		bcryptCost:  cfg.BcryptCost,
		timeout:     timeout,
		logger:      l.With("module", "users"),
		dummyHash:   dummy,
	}, nil
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Tier:         models.BaseTier,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "create user failed", "error", err.Error())
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func validateRegistration(username, email, password string) error {
	var errs []error
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen || strings.ContainsAny(username, "@ \t") {
		errs = append(errs, errors.New("username must be 1-64 characters without spaces or @"))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, errors.New("email is not a valid address"))
	}
	if len(password) < minPasswordLength {
		errs = append(errs, fmt.Errorf("password must be at least %d bytes", minPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		errs = append(errs, auth.ErrPasswordTooLong)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrorValidation, errors.Join(errs...))
}

// Login checks the throttle, then the credentials, and issues a session
// token as the very last step. Unknown identifier and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	key := throttle.Normalize(identifier)
	if key == "" {
		return nil, common.ErrorUnauthorized
	}

	allowed, err := s.throttle.Allow(ctx, key)
	if err != nil {
		s.logger.Error(ctx, "login throttle unavailable", "error", err.Error())
		return nil, common.ErrorInternal
	}
	if !allowed {
		s.logger.Warn(ctx, "login throttled", "identifier", key)
		return nil, common.ErrRateLimited
	}

	user, err := s.lookup(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.VerifyPassword(password, s.dummyHash)
			return nil, common.ErrorUnauthorized
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error(ctx, "credential lookup failed", "error", err.Error())
		return nil, common.ErrorInternal
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	if err := s.throttle.Clear(ctx, key); err != nil {
		// The login itself is valid; a stale counter only delays the next window.
		s.logger.Warn(ctx, "login throttle clear failed", "error", err.Error())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, exp, err := s.sessions.Issue(user.ID)
	if err != nil {
		s.logger.Error(ctx, "issue session token failed", "error", err.Error())
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *UserService) lookup(ctx context.Context, identifier string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repomanager.Users(s.db).GetUserByLogin(ctx, identifier)
}

// Authenticate resolves a session token to a user that still exists.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.sessions.Verify(token)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	return s.UserByID(ctx, id)
}

// UserByID loads the account behind an already verified user id. A deleted
// account is reported as ErrorUnauthorized.
func (s *UserService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "user lookup failed", "user_id", id, "error", err.Error())
		return nil, common.ErrorInternal
	}
	return user, nil
}
