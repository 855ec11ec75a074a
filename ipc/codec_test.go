package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, payload string) []byte {
	t.Helper()
	buf := make([]byte, 4+len(payload))
	binary.NativeEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestReadRequest_Variants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Request
	}{
		{"create", `{"type":"create_session","username":"alice"}`, CreateSession{Username: "alice"}},
		{"answer", `{"type":"post_auth_message_response","response":"pw"}`, PostAuthMessageResponse{Response: Text("pw")}},
		{"answer null", `{"type":"post_auth_message_response","response":null}`, PostAuthMessageResponse{}},
		{"answer missing", `{"type":"post_auth_message_response"}`, PostAuthMessageResponse{}},
		{"start", `{"type":"start_session","cmd":["sway"],"env":["A=b"]}`, StartSession{Cmd: []string{"sway"}, Env: []string{"A=b"}}},
		{"cancel", `{"type":"cancel_session"}`, CancelSession{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadRequest(bytes.NewReader(frame(t, tc.payload)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadRequest_Errors(t *testing.T) {
	t.Run("empty stream is EOF", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader(nil))
		assert.Equal(t, io.EOF, err)
	})

	t.Run("truncated prefix", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader([]byte{1, 0}))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("truncated payload", func(t *testing.T) {
		b := frame(t, `{"type":"cancel_session"}`)
		_, err := ReadRequest(bytes.NewReader(b[:len(b)-3]))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader(frame(t, `{"type":`)))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("missing username", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader(frame(t, `{"type":"create_session"}`)))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader(frame(t, `{"type":"reboot"}`)))
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("oversized", func(t *testing.T) {
		var prefix [4]byte
		binary.NativeEndian.PutUint32(prefix[:], MaxMessageSize+1)
		_, err := ReadRequest(bytes.NewReader(prefix[:]))
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})
}

func TestWriteResponse_WireShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, AuthMessage{AuthMessageType: AuthMessageSecret, AuthMessage: "Password:"}))

	raw := buf.Bytes()
	n := binary.NativeEndian.Uint32(raw[:4])
	require.Equal(t, int(n), len(raw)-4)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(raw[4:], &fields))
	assert.Equal(t, map[string]string{
		"type":              "auth_message",
		"auth_message_type": "secret",
		"auth_message":      "Password:",
	}, fields)
}

func TestRequestResponseExchange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, CreateSession{Username: "bob"}))
	require.NoError(t, WriteResponse(&buf, Error{ErrorType: ErrorTypeAuth, Description: "Invalid credentials"}))
	require.NoError(t, WriteResponse(&buf, Success{}))

	req, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, CreateSession{Username: "bob"}, req)

	resp, err := ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, Error{ErrorType: ErrorTypeAuth, Description: "Invalid credentials"}, resp)

	resp, err = ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, Success{}, resp)

	_, err = ReadResponse(&buf)
	assert.Equal(t, io.EOF, err)
}
