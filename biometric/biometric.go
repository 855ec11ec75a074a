// Package biometric provides the fingerprint verifier used by the biometric
// step. The stub never consults the verifier's result.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/awnumar/memguard"
)

// Verifier attempts to match a live scan against a reference template.
type Verifier interface {
	Verify(ctx context.Context, ref *Reference) (bool, error)
}

// Reference is a reference template. The bytes are sealed in a memguard
// Enclave; Path is kept so external verifiers can read the file themselves.
type Reference struct {
	Path     string
	template *memguard.Enclave
}

// LoadReference reads a reference template from path. An empty path yields
// an empty reference.
func LoadReference(path string) (*Reference, error) {
	if path == "" {
		return &Reference{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference template: %w", err)
	}
	return &Reference{Path: path, template: memguard.NewEnclave(data)}, nil
}

// Size returns the template length in bytes.
func (r *Reference) Size() int {
	if r == nil || r.template == nil {
		return 0
	}
	return r.template.Size()
}

// Nop never matches and never fails.
type Nop struct{}

func (Nop) Verify(context.Context, *Reference) (bool, error) { return false, nil }

// Command runs an external program, for example a fingerprint CLI, with the
// reference path appended to Args. Exit status 0 is a match, any other exit
// status is a mismatch; failing to start the program is an error.
type Command struct {
	Name string
	Args []string
}

func (c Command) Verify(ctx context.Context, ref *Reference) (bool, error) {
	args := append([]string(nil), c.Args...)
	if ref != nil && ref.Path != "" {
		args = append(args, ref.Path)
	}
	err := exec.CommandContext(ctx, c.Name, args...).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("running %s: %w", c.Name, err)
}
