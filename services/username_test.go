package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() *UsernamePolicy {
	return NewUsernamePolicy(UsernameConfig{})
}

func TestUsernamePolicy_Validate(t *testing.T) {
	p := testPolicy()

	invalid := []string{
		"",
		"ab",
		strings.Repeat("a", 21),
		"john doe",
		"john-doe",
		"jöhn",
		"admin",
		"Admin",
		"ADMIN",
		"root",
		"Support",
	}
	for _, s := range invalid {
		assert.False(t, p.Validate(s), "expected %q to be rejected", s)
	}

	valid := []string{"john_doe1", "abc", strings.Repeat("z", 20), "User_42", "admin1", "_x_"}
	for _, s := range valid {
		assert.True(t, p.Validate(s), "expected %q to be accepted", s)
	}
}

func TestUsernamePolicy_ValidateIsPure(t *testing.T) {
	p := testPolicy()
	for _, s := range []string{"john_doe1", "admin", ""} {
		assert.Equal(t, p.Validate(s), p.Validate(s))
	}
}

func TestUsernamePolicy_CustomReservedList(t *testing.T) {
	p := NewUsernamePolicy(UsernameConfig{Reserved: []string{"  Staff ", "billing"}})
	assert.False(t, p.Validate("staff"))
	assert.False(t, p.Validate("BILLING"))
	assert.True(t, p.Validate("admin"), "custom list replaces the defaults")
}

func TestUsernamePolicy_BaseCandidate(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, "johndoe", p.BaseCandidate("John", "Doe"))
	assert.Equal(t, "johndoe", p.BaseCandidate("JOHN", "doe"))
	assert.Equal(t, "maryjanesmith2", p.BaseCandidate("Mary-Jane", " Smith_2 "))
	assert.Equal(t, "", p.BaseCandidate("", ""))
	assert.Equal(t, "jrgen", p.BaseCandidate("Jürgen", ""))

	folding := NewUsernamePolicy(UsernameConfig{FoldDiacritics: true})
	assert.Equal(t, "jurgen", folding.BaseCandidate("Jürgen", ""))
	assert.Equal(t, "zoeleclair", folding.BaseCandidate("Zoë", "Léclair"))
}

func TestUsernamePolicy_RegisterValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, testPolicy().RegisterValidation(v))

	type req struct {
		Username string `validate:"username"`
	}
	assert.NoError(t, v.Struct(req{Username: "john_doe"}))
	assert.Error(t, v.Struct(req{Username: "admin"}))
	assert.Error(t, v.Struct(req{Username: "x"}))
}

func TestAllocate_EmptyStore(t *testing.T) {
	a := NewUsernameAllocator(testPolicy(), newMemoryLookup())
	name, err := a.Allocate(context.Background(), "John", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoe", name)
}

func TestAllocate_SequentialSuffixes(t *testing.T) {
	lookup := newMemoryLookup("johndoe")
	a := NewUsernameAllocator(testPolicy(), lookup)

	name, err := a.Allocate(context.Background(), "John", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoe1", name)

	lookup.taken["johndoe1"] = true
	name, err = a.Allocate(context.Background(), "John", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoe2", name)

	lookup.calls = nil
	lookup.taken["johndoe2"] = true
	name, err = a.Allocate(context.Background(), "John", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoe3", name)
	assert.Equal(t, []string{"johndoe", "johndoe1", "johndoe2", "johndoe3"}, lookup.calls)
}

func TestAllocate_ReservedBaseSkipped(t *testing.T) {
	lookup := newMemoryLookup()
	a := NewUsernameAllocator(testPolicy(), lookup)

	name, err := a.Allocate(context.Background(), "Admin", "")
	require.NoError(t, err)
	assert.Equal(t, "admin1", name)
	assert.NotContains(t, lookup.calls, "admin", "reserved candidates are not looked up")
}

func TestAllocate_CaseInsensitive(t *testing.T) {
	a := NewUsernameAllocator(testPolicy(), newMemoryLookup("JohnDoe"))
	upper, err := a.Allocate(context.Background(), "JOHN", "DOE")
	require.NoError(t, err)
	lower, err := a.Allocate(context.Background(), "john", "doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoe1", upper)
	assert.Equal(t, upper, lower)
}

func TestAllocate_EmptyBaseUsesFallback(t *testing.T) {
	a := NewUsernameAllocator(testPolicy(), newMemoryLookup("user"))
	name, err := a.Allocate(context.Background(), "", "!!!")
	require.NoError(t, err)
	assert.Equal(t, "user1", name)
}

func TestAllocate_ShortBaseSkipsUndersizedCandidates(t *testing.T) {
	lookup := newMemoryLookup()
	a := NewUsernameAllocator(testPolicy(), lookup)

	name, err := a.Allocate(context.Background(), "J", "")
	require.NoError(t, err)
	assert.Equal(t, "j10", name)
	assert.True(t, testPolicy().Validate(name))
	assert.Equal(t, []string{"j10"}, lookup.calls)
}

func TestAllocate_LongBaseIsTruncated(t *testing.T) {
	base := "maximilianalexander" + "vonhohenzollern"
	lookup := newMemoryLookup(base[:20])
	a := NewUsernameAllocator(testPolicy(), lookup)

	name, err := a.Allocate(context.Background(), "Maximilian Alexander", "von Hohenzollern")
	require.NoError(t, err)
	assert.Equal(t, base[:19]+"1", name)
	assert.Len(t, name, UsernameMaxLength)
}

func TestAllocate_RandomFallbackAfterMaxAttempts(t *testing.T) {
	lookup := newMemoryLookup("johndoe", "johndoe1", "johndoe2", "johndoe3")
	a := NewUsernameAllocator(NewUsernamePolicy(UsernameConfig{MaxAttempts: 3}), lookup)
	a.newSuffix = func() string { return "a1b2c3" }

	name, err := a.Allocate(context.Background(), "John", "Doe")
	require.NoError(t, err)
	assert.Equal(t, "johndoea1b2c3", name)
}

func TestAllocate_Exhausted(t *testing.T) {
	lookup := newMemoryLookup("johndoe", "johndoe1", "johndoea1b2c3")
	a := NewUsernameAllocator(NewUsernamePolicy(UsernameConfig{MaxAttempts: 1}), lookup)
	a.newSuffix = func() string { return "a1b2c3" }

	_, err := a.Allocate(context.Background(), "John", "Doe")
	assert.ErrorIs(t, err, ErrUsernameExhausted)
	// base, one suffix, five random tries
	assert.Len(t, lookup.calls, 2+randomSuffixAttempts)
}

func TestAllocate_LookupErrorAborts(t *testing.T) {
	boom := errors.New("connection refused")
	lookup := newMemoryLookup("johndoe")
	lookup.failOn = "johndoe1"
	lookup.failErr = boom
	a := NewUsernameAllocator(testPolicy(), lookup)

	_, err := a.Allocate(context.Background(), "John", "Doe")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"johndoe", "johndoe1"}, lookup.calls)
}

func TestAllocate_ResultAlwaysValid(t *testing.T) {
	a := NewUsernameAllocator(testPolicy(), newMemoryLookup("root", "root1"))
	inputs := [][2]string{
		{"John", "Doe"},
		{"", ""},
		{"Root", ""},
		{"a", "b"},
		{"Ωmega", "Σ"},
		{strings.Repeat("x", 40), "y"},
	}
	for _, in := range inputs {
		name, err := a.Allocate(context.Background(), in[0], in[1])
		require.NoError(t, err)
		assert.True(t, testPolicy().Validate(name), "allocated %q for %v", name, in)
	}
}

func TestRandomUsernameSuffix(t *testing.T) {
	s := randomUsernameSuffix()
	assert.Len(t, s, randomSuffixLength)
	assert.Regexp(t, `^[0-9a-f]+$`, s)
}
