// Package server runs the greetd stub over a unix socket: a serialized
// listener hands each connection to a Handler that drives the session state
// machine.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmcleod/greetd-stub/biometric"
	"github.com/jmcleod/greetd-stub/internal/uuid"
	"github.com/jmcleod/greetd-stub/ipc"
	"github.com/jmcleod/greetd-stub/journal"
	"github.com/jmcleod/greetd-stub/session"
)

// Handler serves the greetd protocol for one connection at a time.
type Handler struct {
	opts      *session.Options
	verifier  biometric.Verifier
	reference *biometric.Reference
	journal   *journal.Recorder
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithVerifier sets the biometric verifier. The default is biometric.Nop.
func WithVerifier(v biometric.Verifier, ref *biometric.Reference) HandlerOption {
	return func(h *Handler) {
		h.verifier = v
		h.reference = ref
	}
}

// WithJournal records connection events through r.
func WithJournal(r *journal.Recorder) HandlerOption {
	return func(h *Handler) { h.journal = r }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates a Handler for the given session options.
func NewHandler(opts *session.Options, hopts ...HandlerOption) *Handler {
	h := &Handler{
		opts:      opts,
		verifier:  biometric.Nop{},
		reference: &biometric.Reference{},
	}
	for _, o := range hopts {
		o(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Serve reads requests from conn until the peer ends the stream, cancels the
// session or a write fails. Every reply goes through the state machine in
// request/response lockstep.
//
// Serve returns nil on end of stream or cancellation, the decode error for
// malformed input and the write error when a reply cannot be sent. In every
// case nothing more is written to conn.
func (h *Handler) Serve(ctx context.Context, conn io.ReadWriter) error {
	connID := uuid.New()
	logger := h.logger.With("conn_id", connID)
	var sc session.Context

	h.journal.Record(ctx, connID, journal.KindConnectionOpened, sc.State.String(), "")
	defer h.journal.Record(ctx, connID, journal.KindConnectionClosed, "", "")

	for {
		req, err := ipc.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("connection closed by peer")
				return nil
			}
			logger.Debug("dropping connection on unreadable request", "error", err)
			h.journal.Record(ctx, connID, journal.KindProtocolError, sc.State.String(), err.Error())
			return err
		}

		logger.Debug("received request", "request", describe(req))

		var resp ipc.Response
		switch r := req.(type) {
		case ipc.CreateSession:
			sc.RecordUsername(h.opts, r.Username)
			h.journal.Record(ctx, connID, journal.KindUsernameChecked, sc.State.String(), matched(sc.UsernameMatched))
			resp = h.advance(ctx, connID, &sc)

		case ipc.PostAuthMessageResponse:
			switch {
			case r.Response != nil:
				sc.RecordAnswer(h.opts, *r.Response)
				resp = h.advance(ctx, connID, &sc)
			case sc.State == session.StateBiometric:
				h.attemptBiometric(ctx, connID, logger)
				resp = h.advance(ctx, connID, &sc)
			default:
				h.journal.Record(ctx, connID, journal.KindUnexpectedRequest, sc.State.String(), "empty response")
				resp = session.CommunicationError
			}

		case ipc.StartSession:
			logger.Info("session successfully started", "cmd", r.Cmd)
			logger.Info("session environment", "env", r.Env)
			h.journal.Record(ctx, connID, journal.KindSessionStarted, sc.State.String(), strings.Join(r.Cmd, " "))
			resp = ipc.Success{}

		case ipc.CancelSession:
			logger.Debug("session cancelled")
			h.journal.Record(ctx, connID, journal.KindSessionCancelled, sc.State.String(), "")
			return nil

		default:
			h.journal.Record(ctx, connID, journal.KindUnexpectedRequest, sc.State.String(), fmt.Sprintf("%T", req))
			resp = session.CommunicationError
		}

		logger.Debug("sending response", "response", fmt.Sprintf("%+v", resp))
		if err := ipc.WriteResponse(conn, resp); err != nil {
			logger.Debug("failed to write response", "error", err)
			return fmt.Errorf("writing response: %w", err)
		}
	}
}

// advance runs the state machine and journals the outcome.
func (h *Handler) advance(ctx context.Context, connID string, sc *session.Context) ipc.Response {
	from := sc.State
	resp := sc.Advance(h.opts)
	switch r := resp.(type) {
	case ipc.Error:
		h.journal.Record(ctx, connID, journal.KindCredentialMismatch, from.String(), r.Description)
	case ipc.AuthMessage:
		h.journal.Record(ctx, connID, journal.KindPromptSent, sc.State.String(), r.AuthMessage)
	case ipc.Success:
		h.journal.Record(ctx, connID, journal.KindAuthSucceeded, sc.State.String(), "")
	}
	return resp
}

// attemptBiometric calls the verifier and discards the outcome.
func (h *Handler) attemptBiometric(ctx context.Context, connID string, logger *slog.Logger) {
	ok, err := h.verifier.Verify(ctx, h.reference)
	detail := matched(ok)
	if err != nil {
		logger.Warn("biometric verification failed", "error", err)
		detail = err.Error()
	} else {
		logger.Debug("biometric verification finished", "matched", ok)
	}
	h.journal.Record(ctx, connID, journal.KindBiometricAttempted, session.StateBiometric.String(), detail)
}

func matched(ok bool) string {
	if ok {
		return "matched"
	}
	return "mismatched"
}

// describe renders a request for debug logs without prompt answers.
func describe(req ipc.Request) string {
	switch r := req.(type) {
	case ipc.PostAuthMessageResponse:
		if r.Response == nil {
			return "PostAuthMessageResponse{response: none}"
		}
		return "PostAuthMessageResponse{response: <redacted>}"
	default:
		return fmt.Sprintf("%T%+v", req, req)
	}
}
