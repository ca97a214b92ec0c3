// Package auth handles account registration, password rules and access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var specialChars = regexp.MustCompile(`[@_!#$%^&*(),.?":{}|<>]`)

// ValidationError lists every problem found in registration input
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Claims are carried in access tokens
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service registers and authenticates users
type Service struct {
	users        *database.UserRepository
	badPasswords *database.BadPasswordRepository
	secret       []byte
	ttl          time.Duration
}

// NewService creates the auth service. Registration never grants admin
// rights; operators grant them with SetAdmin.
func NewService(users *database.UserRepository, badPasswords *database.BadPasswordRepository, secret string, ttl time.Duration) *Service {
	return &Service{
		users:        users,
		badPasswords: badPasswords,
		secret:       []byte(secret),
		ttl:          ttl,
	}
}

// RegisterInput is the data needed to open an account
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// Register validates the input, stores the user and returns an access token
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)

	var problems []string
	if len(in.Username) < 3 {
		problems = append(problems, "username must be at least 3 characters")
	}
	if err := s.ValidatePassword(ctx, in.Password); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, "", err
		}
		problems = append(problems, ve.Problems...)
	}
	if len(problems) > 0 {
		return nil, "", &ValidationError{Problems: problems}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, "", ErrUsernameTaken
		}
		return nil, "", err
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks the credentials and returns an access token
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, database.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	// Accounts created from the bot have no password and cannot log in here
	if user.PasswordHash == "" {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateToken issues a signed HS256 token for the user
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetAdmin grants or revokes admin rights of an existing account. Tokens
// issued before the change keep their old claim until they expire.
func (s *Service) SetAdmin(ctx context.Context, username string, isAdmin bool) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin
	return user, nil
}

// User returns the account behind a user ID
func (s *Service) User(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// ValidatePassword applies the password strength rules and the bad password list
func (s *Service) ValidatePassword(ctx context.Context, password string) error {
	problems := passwordProblems(password)

	common, err := s.badPasswords.Contains(ctx, password)
	if err != nil {
		return err
	}
	if common {
		problems = append(problems, "password is too common")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func passwordProblems(password string) []string {
	var problems []string
	if len(password) < 8 {
		problems = append(problems, "password must be at least 8 characters")
	}

	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "password must contain an uppercase letter")
	}
	if !digit {
		problems = append(problems, "password must contain a digit")
	}
	if !specialChars.MatchString(password) {
		problems = append(problems, "password must contain a special character")
	}
	return problems
}
