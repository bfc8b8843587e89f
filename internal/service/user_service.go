package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"payload/internal/domain"
	"payload/internal/repository"
)

// usernamePattern keeps usernames usable as a single object-key segment.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AdminAccount is the single privileged login, fixed by configuration.
type AdminAccount struct {
	Username string
	Password string
}

// UserService authenticates couriers and the administrator.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

type userService struct {
	users     repository.UserRepository
	admin     AdminAccount
	startedAt time.Time
}

func NewUserService(users repository.UserRepository, admin AdminAccount) UserService {
	return &userService{
		users: users,
		admin: AdminAccount{
			Username: strings.TrimSpace(admin.Username),
			Password: admin.Password,
		},
		startedAt: time.Now().UTC(),
	}
}

func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username may only contain letters, digits, '.', '_' and '-'", domain.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password is longer than %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}
	if s.isAdminName(username) {
		return nil, domain.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.isAdminName(username) {
		if s.admin.Password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) != 1 {
			return nil, domain.ErrInvalidCredentials
		}
		return &domain.User{
			Username:  s.admin.Username,
			Role:      domain.RoleAdmin,
			CreatedAt: s.startedAt,
		}, nil
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) isAdminName(username string) bool {
	return s.admin.Username != "" && username == s.admin.Username
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Role:      domain.RoleMember,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
