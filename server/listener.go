package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// Listener accepts greeter connections on a unix socket and serves them one
// at a time: the next connection is accepted only after the current one has
// finished. Clients arriving meanwhile wait in the kernel backlog.
type Listener struct {
	path    string
	handler *Handler
	logger  *slog.Logger

	ln net.Listener

	mu     sync.Mutex
	active net.Conn
}

// Listen removes any file at path, binds a unix socket there and returns a
// Listener ready to Serve. A non-zero mode is applied to the socket file.
func Listen(path string, mode os.FileMode, handler *Handler, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving socket path: %w", err)
	}
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing existing socket file: %w", err)
	}
	ln, err := net.Listen("unix", absPath)
	if err != nil {
		return nil, fmt.Errorf("listening on unix socket %s: %w", absPath, err)
	}
	if mode != 0 {
		if err := os.Chmod(absPath, mode); err != nil {
			logger.Warn("failed to set socket permissions", "path", absPath, "error", err)
		}
	}
	return &Listener{
		path:    absPath,
		handler: handler,
		logger:  logger.With("component", "listener"),
		ln:      ln,
	}, nil
}

// Path returns the absolute socket path.
func (l *Listener) Path() string {
	return l.path
}

// Serve runs the accept loop until ctx is done or the listener is closed.
// Connection failures of any kind never stop the loop.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	l.logger.Info("starting greetd stub", "socket", l.path)
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("accept failed", "error", err)
			continue
		}
		l.serveConn(ctx, conn)
	}
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	l.mu.Lock()
	l.active = conn
	l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("connection handler panic", "panic", r)
		}
		l.mu.Lock()
		l.active = nil
		l.mu.Unlock()
		conn.Close()
	}()

	if err := l.handler.Serve(ctx, conn); err != nil {
		l.logger.Debug("connection ended with error", "error", err)
	}
}

// Close stops accepting, drops the active connection and removes the socket
// file. It is safe to call more than once.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	l.mu.Lock()
	if l.active != nil {
		l.active.Close()
	}
	l.mu.Unlock()
	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		l.logger.Warn("failed to remove socket file", "path", l.path, "error", rmErr)
	}
	return err
}
