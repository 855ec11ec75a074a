// Package session implements the per-connection authentication state machine
// of the greetd stub.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
)

// ErrInvalidCredentialSpec indicates a credential string without a ':' separator.
var ErrInvalidCredentialSpec = errors.New("invalid credential spec, should be USERNAME:PASSWORD")

const (
	DefaultUsername = "user"
	DefaultPassword = "password"
)

// Options is the immutable configuration shared by every connection.
// The expected password is sealed in a memguard Enclave.
type Options struct {
	username     string
	password     *memguard.Enclave
	secondFactor bool
	biometric    bool
}

// Option customizes Options at construction.
type Option func(*Options)

// WithSecondFactor enables the arithmetic second-factor step.
func WithSecondFactor(enabled bool) Option {
	return func(o *Options) { o.secondFactor = enabled }
}

// WithBiometric enables the biometric step.
func WithBiometric(enabled bool) Option {
	return func(o *Options) { o.biometric = enabled }
}

// NewOptions builds Options accepting the given username and password.
func NewOptions(username, password string, opts ...Option) *Options {
	o := &Options{
		username: username,
		// NewEnclave wipes its argument.
		password: memguard.NewEnclave([]byte(password)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ParseCredentials splits a USERNAME:PASSWORD spec at the first ':'.
// The password may itself contain ':'.
func ParseCredentials(spec string) (username, password string, err error) {
	username, password, ok := strings.Cut(spec, ":")
	if !ok {
		return "", "", fmt.Errorf("%q: %w", spec, ErrInvalidCredentialSpec)
	}
	return username, password, nil
}

// Username returns the expected username.
func (o *Options) Username() string { return o.username }

// SecondFactor reports whether the second-factor step is enabled.
func (o *Options) SecondFactor() bool { return o.secondFactor }

// Biometric reports whether the biometric step is enabled.
func (o *Options) Biometric() bool { return o.biometric }

// MatchUsername reports whether name is the expected username.
func (o *Options) MatchUsername(name string) bool {
	return name == o.username
}

// MatchPassword compares candidate with the expected password in constant time.
func (o *Options) MatchPassword(candidate string) bool {
	if o.password == nil {
		return candidate == ""
	}
	buf, err := o.password.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()
	return buf.EqualTo([]byte(candidate))
}
