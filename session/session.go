package session

import "github.com/jmcleod/greetd-stub/ipc"

// State is the authentication step a connection is on. States only move
// forward; a failed gate check leaves the state where it was.
type State int

const (
	StateUsername State = iota
	StatePassword
	StateSecondFactor
	StateBiometric
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUsername:
		return "username"
	case StatePassword:
		return "password"
	case StateSecondFactor:
		return "second_factor"
	case StateBiometric:
		return "biometric"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// SecondFactorAnswer is the expected reply to the second-factor prompt.
const SecondFactorAnswer = "9"

// Prompts and errors sent to the greeter.
var (
	PasswordPrompt     = ipc.AuthMessage{AuthMessageType: ipc.AuthMessageSecret, AuthMessage: "Password:"}
	SecondFactorPrompt = ipc.AuthMessage{AuthMessageType: ipc.AuthMessageVisible, AuthMessage: "7 + 2 ="}
	BiometricPrompt    = ipc.AuthMessage{AuthMessageType: ipc.AuthMessageInfo, AuthMessage: "Scan your fingerprint..."}

	InvalidCredentials = ipc.Error{ErrorType: ipc.ErrorTypeAuth, Description: "Invalid credentials"}
	CommunicationError = ipc.Error{ErrorType: ipc.ErrorTypeAuth, Description: "Communication error"}
)

// Context is the mutable per-connection record. The zero value is a fresh
// connection waiting for a username.
//
// The Matched fields hold evidence: whether the latest input for that step
// was correct. They are written by the Record methods and only read by
// Advance, so a wrong answer can be corrected without losing earlier steps.
type Context struct {
	State               State
	UsernameMatched     bool
	PasswordMatched     bool
	SecondFactorMatched bool
}

// RecordUsername stores whether name is the expected username.
func (c *Context) RecordUsername(opts *Options, name string) {
	c.UsernameMatched = opts.MatchUsername(name)
}

// RecordAnswer stores the evidence carried by a prompt answer for the
// current state. States that expect no text ignore it.
func (c *Context) RecordAnswer(opts *Options, text string) {
	switch c.State {
	case StatePassword:
		c.PasswordMatched = opts.MatchPassword(text)
	case StateSecondFactor:
		c.SecondFactorMatched = text == SecondFactorAnswer
	}
}

// Advance gate-checks the evidence for the current state and, when it
// passes, moves to the next state and returns the response to send.
func (c *Context) Advance(opts *Options) ipc.Response {
	if !c.gate() {
		return InvalidCredentials
	}
	next, resp := Transition(c.State, opts)
	c.State = next
	return resp
}

func (c *Context) gate() bool {
	switch c.State {
	case StatePassword:
		return c.UsernameMatched && c.PasswordMatched
	case StateSecondFactor:
		return c.SecondFactorMatched
	default:
		return true
	}
}

// Transition returns the state following from and the response announcing
// it. It assumes the gate for from has already passed.
func Transition(from State, opts *Options) (State, ipc.Response) {
	switch from {
	case StateUsername:
		return StatePassword, PasswordPrompt
	case StatePassword:
		switch {
		case opts.SecondFactor():
			return StateSecondFactor, SecondFactorPrompt
		case opts.Biometric():
			return StateBiometric, BiometricPrompt
		default:
			return StateDone, ipc.Success{}
		}
	case StateSecondFactor:
		if opts.Biometric() {
			return StateBiometric, BiometricPrompt
		}
		return StateDone, ipc.Success{}
	default:
		// Biometric completes regardless of the verifier; Done is terminal.
		return StateDone, ipc.Success{}
	}
}
