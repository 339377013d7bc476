package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 20

	// fallbackUsernameBase is used when the name parts contain nothing usable.
	fallbackUsernameBase = "user"
	randomSuffixAttempts = 5
	randomSuffixLength   = 6
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

	ErrUsernameExhausted = errors.New("no available username")
)

// DefaultReservedUsernames is the reserved set used when config does not override it.
func DefaultReservedUsernames() []string {
	return []string{
		"admin", "root", "system", "moderator", "support",
		"owner", "undefined", "null", "api", "me", "settings",
	}
}

// UsernameLookup answers whether a handle is currently assigned to an account.
// Handles are passed lowercase.
type UsernameLookup interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// UsernamePolicy holds the format and reserved-word rules for handles.
// It is immutable after construction and safe for concurrent use.
type UsernamePolicy struct {
	reserved       map[string]struct{}
	maxAttempts    int
	foldDiacritics bool
}

// NewUsernamePolicy builds a policy from config. An empty reserved list falls back to
// DefaultReservedUsernames.
func NewUsernamePolicy(cfg UsernameConfig) *UsernamePolicy {
	words := cfg.Reserved
	if len(words) == 0 {
		words = DefaultReservedUsernames()
	}
	reserved := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = NormalizeUsername(w)
		if w != "" {
			reserved[w] = struct{}{}
		}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1000
	}
	return &UsernamePolicy{
		reserved:       reserved,
		maxAttempts:    maxAttempts,
		foldDiacritics: cfg.FoldDiacritics,
	}
}

// NormalizeUsername trims and lowercases a handle for storage and comparison.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsReserved reports whether s is a reserved handle, ignoring case.
func (p *UsernamePolicy) IsReserved(s string) bool {
	_, ok := p.reserved[strings.ToLower(s)]
	return ok
}

// Validate reports whether candidate is an acceptable handle: 3-20 characters of
// [a-zA-Z0-9_] and not reserved.
func (p *UsernamePolicy) Validate(candidate string) bool {
	if !usernamePattern.MatchString(candidate) {
		return false
	}
	return !p.IsReserved(candidate)
}

// RegisterValidation exposes the policy as the "username" tag on v.
func (p *UsernamePolicy) RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return p.Validate(fl.Field().String())
	})
}

// BaseCandidate derives the unsuffixed handle from name parts: both parts lowercased,
// concatenated, with everything outside [a-z0-9] removed.
func (p *UsernamePolicy) BaseCandidate(firstName, lastName string) string {
	raw := strings.ToLower(firstName) + strings.ToLower(lastName)
	if p.foldDiacritics {
		raw = foldDiacritics(raw)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// UsernameAllocator derives available handles from name parts.
type UsernameAllocator struct {
	policy *UsernamePolicy
	lookup UsernameLookup
	// newSuffix returns the random fallback suffix; replaced in tests.
	newSuffix func() string
}

func NewUsernameAllocator(policy *UsernamePolicy, lookup UsernameLookup) *UsernameAllocator {
	return &UsernameAllocator{policy: policy, lookup: lookup, newSuffix: randomUsernameSuffix}
}

func (a *UsernameAllocator) Policy() *UsernamePolicy { return a.policy }

// Allocate returns a handle that, at the time of the check, is neither reserved nor
// held by an account. Candidates are base, base1, base2, ... in order. The result
// always passes Validate. Lookup errors abort the allocation.
//
// Nothing is written: a concurrent caller may be handed the same handle, and the
// store's unique index decides which write wins.
func (a *UsernameAllocator) Allocate(ctx context.Context, firstName, lastName string) (string, error) {
	base := a.policy.BaseCandidate(firstName, lastName)
	if base == "" {
		base = fallbackUsernameBase
	}

	for n := 0; n <= a.policy.maxAttempts; n++ {
		suffix := ""
		if n > 0 {
			suffix = strconv.Itoa(n)
		}
		candidate := fitUsername(base, suffix)
		if len(candidate) < UsernameMinLength || a.policy.IsReserved(candidate) {
			continue
		}
		taken, err := a.lookup.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	for i := 0; i < randomSuffixAttempts; i++ {
		candidate := fitUsername(base, a.newSuffix())
		if a.policy.IsReserved(candidate) {
			continue
		}
		taken, err := a.lookup.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for base %q", ErrUsernameExhausted, base)
}

// fitUsername truncates base so that base+suffix fits the maximum handle length.
func fitUsername(base, suffix string) string {
	if keep := UsernameMaxLength - len(suffix); len(base) > keep {
		base = base[:keep]
	}
	return base + suffix
}

func randomUsernameSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomSuffixLength]
}
