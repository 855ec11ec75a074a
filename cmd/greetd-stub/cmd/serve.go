package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/greetd-stub/biometric"
	"github.com/jmcleod/greetd-stub/journal"
	"github.com/jmcleod/greetd-stub/server"
	"github.com/jmcleod/greetd-stub/session"
	"github.com/jmcleod/greetd-stub/statusapi"
)

const defaultSocket = "/tmp/greetd.sock"

var (
	socketPath        string
	socketMode        string
	userSpec          string
	mfa               bool
	fingerprint       bool
	biometricTemplate string
	biometricCmd      string
	journalPath       string
	statusAddr        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for greeter connections",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(c *cobra.Command) {
	c.Flags().StringVarP(&socketPath, "socket", "s", defaultSocket, "Path to the UNIX socket to create")
	c.Flags().StringVar(&socketMode, "socket-mode", "", "Octal permissions for the socket file, e.g. 0660")
	c.Flags().StringVarP(&userSpec, "user", "u", session.DefaultUsername+":"+session.DefaultPassword, "Username and password to accept, as USERNAME:PASSWORD")
	c.Flags().BoolVarP(&mfa, "mfa", "m", false, "Enable second-factor authentication")
	c.Flags().BoolVarP(&fingerprint, "fingerprint", "f", false, "Enable fingerprint scan")
	c.Flags().StringVar(&biometricTemplate, "biometric-template", "", "Reference fingerprint template file")
	c.Flags().StringVar(&biometricCmd, "biometric-cmd", "", "Command run for each fingerprint scan; its result is logged but ignored")
	c.Flags().StringVar(&journalPath, "journal", "", "Persist the connection journal to this BBolt file")
	c.Flags().StringVar(&statusAddr, "status-addr", "", "Serve the status API on this address, e.g. 127.0.0.1:8080")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	username, password, err := session.ParseCredentials(userSpec)
	if err != nil {
		return err
	}
	opts := session.NewOptions(username, password,
		session.WithSecondFactor(mfa),
		session.WithBiometric(fingerprint),
	)

	mode, err := parseSocketMode(socketMode)
	if err != nil {
		return err
	}

	ref, err := biometric.LoadReference(biometricTemplate)
	if err != nil {
		return err
	}

	store, err := openJournal(journalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := server.NewHandler(opts,
		server.WithVerifier(newVerifier(biometricCmd), ref),
		server.WithJournal(journal.NewRecorder(store, logger)),
		server.WithLogger(logger),
	)

	listener, err := server.Listen(socketPath, mode, handler, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if statusAddr != "" {
		statusServer := &http.Server{
			Addr:              statusAddr,
			Handler:           statusapi.New(opts, store).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status API failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Shutdown(shutdownCtx)
		}()
		logger.Info("status API listening", "addr", statusAddr)
	}

	printBanner(cmd.ErrOrStderr())
	logger.Info("accepting credentials",
		slog.String("username", username),
		slog.Bool("mfa", mfa),
		slog.Bool("fingerprint", fingerprint))

	if err := listener.Serve(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func parseSocketMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid socket mode %q: expected octal permissions such as 0660", s)
	}
	return os.FileMode(v), nil
}

func newVerifier(command string) biometric.Verifier {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return biometric.Nop{}
	}
	return biometric.Command{Name: fields[0], Args: fields[1:]}
}

func openJournal(path string) (journal.Store, error) {
	if path == "" {
		return journal.NewMemoryStore(), nil
	}
	store, err := journal.NewBoltStoreFromFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}
