package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type envelope struct {
	Type string `json:"type"`
}

// ReadRequest reads one request from r. A clean end of stream before the
// first byte of a message returns io.EOF unwrapped; every other failure wraps
// ErrMalformed, ErrMessageTooLarge or ErrUnknownType.
func ReadRequest(r io.Reader) (Request, error) {
	payload, tag, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "create_session":
		var body struct {
			Username *string `json:"username"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if body.Username == nil {
			return nil, fmt.Errorf("%w: create_session without username", ErrMalformed)
		}
		return CreateSession{Username: *body.Username}, nil
	case "post_auth_message_response":
		var req PostAuthMessageResponse
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return req, nil
	case "start_session":
		var body struct {
			Cmd *[]string `json:"cmd"`
			Env []string  `json:"env"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if body.Cmd == nil {
			return nil, fmt.Errorf("%w: start_session without cmd", ErrMalformed)
		}
		return StartSession{Cmd: *body.Cmd, Env: body.Env}, nil
	case "cancel_session":
		return CancelSession{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
}

// ReadResponse reads one response from r. It is the greeter side of the codec.
func ReadResponse(r io.Reader) (Response, error) {
	payload, tag, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "success":
		return Success{}, nil
	case "error":
		var resp Error
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return resp, nil
	case "auth_message":
		var resp AuthMessage
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
}

// WriteRequest encodes req onto w.
func WriteRequest(w io.Writer, req Request) error {
	return writeFrame(w, req.requestType(), req)
}

// WriteResponse encodes resp onto w.
func WriteResponse(w io.Writer, resp Response) error {
	return writeFrame(w, resp.responseType(), resp)
}

func readFrame(r io.Reader) ([]byte, string, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, "", io.EOF
		}
		return nil, "", fmt.Errorf("%w: reading length: %w", ErrMalformed, err)
	}
	n := binary.NativeEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, "", fmt.Errorf("%w: reading payload: %w", ErrMalformed, err)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return payload, env.Type, nil
}

// writeFrame marshals v, injects the type tag and writes the framed message
// in a single Write call.
func writeFrame(w io.Writer, tag string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", tag, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("encoding %s: %w", tag, err)
	}
	fields["type"], _ = json.Marshal(tag)
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", tag, err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("encoding %s: %w", tag, ErrMessageTooLarge)
	}

	frame := make([]byte, 4+len(payload))
	binary.NativeEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	_, err = w.Write(frame)
	return err
}
