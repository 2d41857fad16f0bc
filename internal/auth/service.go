package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/common"
	"github.com/noah-isme/kitstore/internal/obs"
)

const (
	defaultTokenTTL = 24 * time.Hour
	defaultIssuer   = "kitstore"
)

var (
	// ErrUserNotFound is returned by repositories when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned by repositories when the email or username is taken.
	ErrDuplicateUser = errors.New("email or username already exists")
	// ErrInvalidCredentials marks a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is the account shape returned to the storefront.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UserRecord is a stored account including its password hash.
type UserRecord struct {
	User
	PasswordHash string
}

// NewUser is the row written on registration.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
}

// Repository stores accounts.
type Repository interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up payload.
type Registration struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// Result is returned after a successful login or registration.
type Result struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// Config configures the auth service.
type Config struct {
	Repo     Repository
	Secret   string
	TokenTTL time.Duration
	Issuer   string
	Logger   *zerolog.Logger
}

// Service registers and authenticates shoppers.
type Service struct {
	repo     Repository
	secret   []byte
	ttl      time.Duration
	issuer   string
	now      func() time.Time
	validate *validator.Validate
	logger   *zerolog.Logger
}

var nopLogger = zerolog.Nop()

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("auth: repository is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &nopLogger
	}
	return &Service{
		repo:     cfg.Repo,
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		now:      time.Now,
		validate: validator.New(),
		logger:   logger,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates an account and returns a token for it.
func (s *Service) Register(ctx context.Context, in Registration) (Result, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		countAuth("register", "invalid")
		return Result{}, common.NewAppError("VALIDATION_ERROR", "Email, username, and password are required", http.StatusBadRequest, nil)
	}
	if err := s.validate.Struct(in); err != nil {
		countAuth("register", "invalid")
		return Result{}, common.NewAppError("VALIDATION_ERROR", "Invalid registration details", http.StatusBadRequest, err).
			WithDetails(fieldErrors(err))
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if errors.Is(err, ErrDuplicateUser) {
		countAuth("register", "duplicate")
		return Result{}, common.NewAppError("USER_EXISTS", "Email or username already exists", http.StatusConflict, err)
	}
	if err != nil {
		countAuth("register", "error")
		return Result{}, common.NewAppError("DB_ERROR", "Database error", http.StatusInternalServerError, fmt.Errorf("create user: %w", err))
	}

	token, err := s.signToken(user)
	if err != nil {
		return Result{}, fmt.Errorf("sign token: %w", err)
	}
	countAuth("register", "success")
	s.logger.Info().Int64("user_id", user.ID).Msg("user_registered")
	return Result{Message: "Registration successful", Token: token, User: user}, nil
}

// Login verifies credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, in Credentials) (Result, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		countAuth("login", "invalid")
		return Result{}, common.NewAppError("VALIDATION_ERROR", "Email and password required", http.StatusBadRequest, nil)
	}

	record, err := s.repo.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		countAuth("login", "rejected")
		return Result{}, invalidCredentials()
	}
	if err != nil {
		countAuth("login", "error")
		return Result{}, common.NewAppError("DB_ERROR", "Database error", http.StatusInternalServerError, fmt.Errorf("load user: %w", err))
	}
	ok, err := argon2id.ComparePasswordAndHash(in.Password, record.PasswordHash)
	if err != nil || !ok {
		countAuth("login", "rejected")
		return Result{}, invalidCredentials()
	}

	token, err := s.signToken(record.User)
	if err != nil {
		return Result{}, fmt.Errorf("sign token: %w", err)
	}
	countAuth("login", "success")
	return Result{Message: "Login successful", Token: token, User: record.User}, nil
}

func invalidCredentials() error {
	return common.NewAppError("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized, ErrInvalidCredentials)
}

func (s *Service) signToken(u User) (string, error) {
	now := s.now()
	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(strconv.FormatInt(u.ID, 10)).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("username", u.Username).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func countAuth(action, result string) {
	if obs.AuthAttempts != nil {
		obs.AuthAttempts.WithLabelValues(action, result).Inc()
	}
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
	}
	return out
}
