// Package ipc implements the greetd IPC message types and their wire codec.
//
// Every message is a 4-byte native-endian unsigned length followed by a JSON
// object of that length. The object carries a "type" tag selecting the
// variant.
package ipc

import "errors"

var (
	// ErrMalformed indicates a message that could not be decoded.
	ErrMalformed = errors.New("malformed message")
	// ErrMessageTooLarge indicates a length prefix above MaxMessageSize.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrUnknownType indicates a well-formed message with an unrecognised type tag.
	ErrUnknownType = errors.New("unknown message type")
)

// MaxMessageSize bounds the JSON payload of a single message.
const MaxMessageSize = 1 << 20

// ErrorType classifies an Error response.
type ErrorType string

const (
	ErrorTypeAuth  ErrorType = "auth_error"
	ErrorTypeError ErrorType = "error"
)

// AuthMessageType tells the greeter how to present an AuthMessage.
type AuthMessageType string

const (
	AuthMessageVisible AuthMessageType = "visible"
	AuthMessageSecret  AuthMessageType = "secret"
	AuthMessageInfo    AuthMessageType = "info"
	AuthMessageError   AuthMessageType = "error"
)

// Request is a message sent by the greeter. The concrete types are
// CreateSession, PostAuthMessageResponse, StartSession and CancelSession.
type Request interface {
	requestType() string
}

// CreateSession starts an authentication attempt for Username.
type CreateSession struct {
	Username string `json:"username"`
}

// PostAuthMessageResponse answers the last AuthMessage. Response is nil when
// the greeter has nothing to send, as for info prompts.
type PostAuthMessageResponse struct {
	Response *string `json:"response"`
}

// StartSession asks for the authenticated session to be started.
type StartSession struct {
	Cmd []string `json:"cmd"`
	Env []string `json:"env"`
}

// CancelSession aborts the current authentication attempt.
type CancelSession struct{}

func (CreateSession) requestType() string           { return "create_session" }
func (PostAuthMessageResponse) requestType() string { return "post_auth_message_response" }
func (StartSession) requestType() string            { return "start_session" }
func (CancelSession) requestType() string           { return "cancel_session" }

// Response is a message sent back to the greeter. The concrete types are
// Success, Error and AuthMessage.
type Response interface {
	responseType() string
}

// Success acknowledges the last request.
type Success struct{}

// Error reports a failed request.
type Error struct {
	ErrorType   ErrorType `json:"error_type"`
	Description string    `json:"description"`
}

// AuthMessage is a prompt the greeter must show and answer.
type AuthMessage struct {
	AuthMessageType AuthMessageType `json:"auth_message_type"`
	AuthMessage     string          `json:"auth_message"`
}

func (Success) responseType() string     { return "success" }
func (Error) responseType() string       { return "error" }
func (AuthMessage) responseType() string { return "auth_message" }

// Text returns a pointer to s, for building PostAuthMessageResponse values.
func Text(s string) *string {
	return &s
}
