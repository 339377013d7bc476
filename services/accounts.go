package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/models"
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
)

// UsernameStatus answers an availability check for a handle.
type UsernameStatus struct {
	Username  string `json:"username"`
	Valid     bool   `json:"valid"`
	Reserved  bool   `json:"reserved"`
	Available bool   `json:"available"`
}

// AccountService owns account creation and the account-level changes that touch
// handles, emails or passwords.
type AccountService struct {
	users         models.UserRepositoryInterface
	allocator     *UsernameAllocator
	passwords     *PasswordPolicy
	createRetries int
	log           *logrus.Logger
}

func NewAccountService(users models.UserRepositoryInterface, allocator *UsernameAllocator, passwords *PasswordPolicy, createRetries int, log *logrus.Logger) *AccountService {
	if createRetries <= 0 {
		createRetries = 1
	}
	if passwords == nil {
		passwords = DefaultPasswordPolicy()
	}
	return &AccountService{
		users:         users,
		allocator:     allocator,
		passwords:     passwords,
		createRetries: createRetries,
		log:           log,
	}
}

func (s *AccountService) Policy() *UsernamePolicy { return s.allocator.Policy() }

// Register creates an account. Without an explicit username one is allocated from
// the name parts; if another registration claims it first, allocation runs again.
func (s *AccountService) Register(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if err := s.passwords.Validate(req.Password); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	user := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if err := user.HashPassword(req.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if req.Username != "" {
		name, err := s.checkUsername(ctx, req.Username, false)
		if err != nil {
			return nil, err
		}
		user.Username = name
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.createRetries; attempt++ {
		name, err := s.allocator.Allocate(ctx, user.FirstName, user.LastName)
		if err != nil {
			return nil, fmt.Errorf("allocate username: %w", err)
		}
		user.Username = name
		err = s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, models.ErrDuplicateUsername) {
			return nil, err
		}
		lastErr = err
		s.log.WithFields(logrus.Fields{"username": name, "attempt": attempt}).Warn("allocated username claimed concurrently, retrying")
	}
	return nil, fmt.Errorf("create account after %d attempts: %w", s.createRetries, lastErr)
}

// checkUsername normalizes an explicitly chosen handle and confirms it is valid and
// free. allowReserved keeps the format rules but lets a reserved word through.
func (s *AccountService) checkUsername(ctx context.Context, raw string, allowReserved bool) (string, error) {
	name := NormalizeUsername(raw)
	valid := s.Policy().Validate(name)
	if allowReserved {
		valid = usernamePattern.MatchString(name)
	}
	if !valid {
		return "", ErrInvalidUsername
	}
	taken, err := s.users.UsernameExists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("check username %q: %w", name, err)
	}
	if taken {
		return "", models.ErrDuplicateUsername
	}
	return name, nil
}

// SeedAdmin creates the operator account named by the deployment. Reserved handles
// such as "admin" are accepted here and nowhere else. An existing account with the
// same email is left untouched and returned with created=false.
func (s *AccountService) SeedAdmin(ctx context.Context, email, username, password string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if existing, err := s.users.GetByEmail(ctx, email); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("check email: %w", err)
	}
	if err := s.passwords.Validate(password); err != nil {
		return nil, false, err
	}
	name, err := s.checkUsername(ctx, username, true)
	if err != nil {
		return nil, false, err
	}

	user := &models.User{Username: name, Email: email, FirstName: "Admin"}
	if err := user.HashPassword(password); err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	if err := s.users.UpdateFlags(ctx, user.ID, true, false); err != nil {
		return nil, false, fmt.Errorf("grant admin: %w", err)
	}
	user.IsAdmin = true
	return user, true, nil
}

// Authenticate returns the account for email when password matches.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if user.IsDisabled {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// UsernameStatus reports whether name could be registered right now.
func (s *AccountService) UsernameStatus(ctx context.Context, name string) (UsernameStatus, error) {
	name = NormalizeUsername(name)
	status := UsernameStatus{
		Username: name,
		Valid:    s.Policy().Validate(name),
		Reserved: s.Policy().IsReserved(name),
	}
	if !status.Valid {
		return status, nil
	}
	taken, err := s.users.UsernameExists(ctx, name)
	if err != nil {
		return status, fmt.Errorf("check username %q: %w", name, err)
	}
	status.Available = !taken
	return status, nil
}

// SuggestUsername allocates, without reserving, a handle for the name parts.
func (s *AccountService) SuggestUsername(ctx context.Context, firstName, lastName string) (string, error) {
	return s.allocator.Allocate(ctx, firstName, lastName)
}

// UpdateProfile applies the non-nil fields of req. Re-submitting the current
// username is a no-op.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		if name := NormalizeUsername(*req.Username); name != user.Username {
			checked, err := s.checkUsername(ctx, name, false)
			if err != nil {
				return nil, err
			}
			s.log.WithFields(logrus.Fields{"user_id": user.ID, "from": user.Username, "to": checked}).Info("username changed")
			user.Username = checked
		}
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if bio == "" {
			user.Bio = nil
		} else {
			user.Bio = &bio
		}
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AccountService) ChangeEmail(ctx context.Context, userID uuid.UUID, email, currentPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(currentPassword) {
		return ErrInvalidCredentials
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == user.Email {
		return nil
	}
	if other, err := s.users.GetByEmail(ctx, email); err == nil && other.ID != user.ID {
		return models.ErrDuplicateEmail
	}
	return s.users.UpdateEmail(ctx, userID, email)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(currentPassword) {
		return ErrInvalidCredentials
	}
	if err := s.passwords.Validate(newPassword); err != nil {
		return err
	}
	if err := user.HashPassword(newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, user.PasswordHash)
}

func (s *AccountService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("account deleted")
	return nil
}
