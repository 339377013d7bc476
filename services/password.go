package services

import (
	"errors"
	"strings"
	"unicode"
)

var ErrWeakPassword = errors.New("password does not meet policy")

// PasswordPolicy defines the password requirements
type PasswordPolicy struct {
	MinLength      int      `json:"min_length"`
	MaxLength      int      `json:"max_length"`
	RequireUpper   bool     `json:"require_upper"`
	RequireLower   bool     `json:"require_lower"`
	RequireNumber  bool     `json:"require_number"`
	ForbiddenWords []string `json:"forbidden_words"`
}

func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:      10,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireNumber:  true,
		ForbiddenWords: []string{"password", "patronhub", "qwerty", "letmein", "welcome", "123456"},
	}
}

// PasswordError carries the human readable reason a password was rejected.
type PasswordError struct{ Reason string }

func (e *PasswordError) Error() string { return e.Reason }
func (e *PasswordError) Unwrap() error { return ErrWeakPassword }

func weak(reason string) error { return &PasswordError{Reason: reason} }

// Validate checks password against the policy. Rejections unwrap to ErrWeakPassword.
func (pp *PasswordPolicy) Validate(password string) error {
	if len(password) < pp.MinLength {
		return weak("password is too short")
	}
	if len(password) > pp.MaxLength {
		return weak("password is too long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	if pp.RequireUpper && !hasUpper {
		return weak("password must contain at least one uppercase letter")
	}
	if pp.RequireLower && !hasLower {
		return weak("password must contain at least one lowercase letter")
	}
	if pp.RequireNumber && !hasNumber {
		return weak("password must contain at least one number")
	}

	lower := strings.ToLower(password)
	for _, word := range pp.ForbiddenWords {
		if strings.Contains(lower, word) {
			return weak("password contains a common word")
		}
	}
	if hasSequentialChars(lower) {
		return weak("password contains sequential characters")
	}
	if hasRepeatingChars(password) {
		return weak("password contains too many repeating characters")
	}
	return nil
}

// hasSequentialChars reports runs of four ascending or descending bytes (1234, dcba).
func hasSequentialChars(s string) bool {
	for i := 0; i+3 < len(s); i++ {
		up := s[i]+1 == s[i+1] && s[i+1]+1 == s[i+2] && s[i+2]+1 == s[i+3]
		down := s[i]-1 == s[i+1] && s[i+1]-1 == s[i+2] && s[i+2]-1 == s[i+3]
		if up || down {
			return true
		}
	}
	return false
}

func hasRepeatingChars(s string) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
