package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/greetd-stub/ipc"
)

// maxLoginSteps bounds the prompt loop against a misbehaving daemon.
const maxLoginSteps = 16

var errLoginFailed = errors.New("login failed")

var (
	loginSocket   string
	loginUser     string
	loginPassword string
	loginAnswer   string
	loginCmd      []string
	loginEnv      []string
	loginTimeout  time.Duration
)

// loginScript holds the answers a scripted greeter gives to each prompt.
type loginScript struct {
	Username string
	Password string
	Answer   string
	Cmd      []string
	Env      []string
}

var loginCmdDef = &cobra.Command{
	Use:   "login",
	Short: "Run a scripted greeter against a greetd socket",
	Long: `Connects to a greetd (or greetd-stub) socket, creates a session and answers
every prompt from the given flags: secret prompts get --password, visible
prompts get --answer and info prompts get an empty reply. When --cmd is set
the session is started after successful authentication.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.DialTimeout("unix", loginSocket, loginTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", loginSocket, err)
		}
		defer conn.Close()
		if loginTimeout > 0 {
			conn.SetDeadline(time.Now().Add(loginTimeout))
		}

		return runLogin(conn, cmd.OutOrStdout(), loginScript{
			Username: loginUser,
			Password: loginPassword,
			Answer:   loginAnswer,
			Cmd:      loginCmd,
			Env:      loginEnv,
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmdDef)
	loginCmdDef.Flags().StringVarP(&loginSocket, "socket", "s", defaultSocket, "Path to the greetd socket")
	loginCmdDef.Flags().StringVarP(&loginUser, "user", "u", "user", "Username to log in as")
	loginCmdDef.Flags().StringVarP(&loginPassword, "password", "p", "password", "Reply to secret prompts")
	loginCmdDef.Flags().StringVar(&loginAnswer, "answer", "9", "Reply to visible prompts")
	loginCmdDef.Flags().StringSliceVar(&loginCmd, "cmd", nil, "Session command to start after authentication")
	loginCmdDef.Flags().StringSliceVar(&loginEnv, "env", nil, "Session environment as KEY=VALUE")
	loginCmdDef.Flags().DurationVar(&loginTimeout, "timeout", 30*time.Second, "Overall time limit, 0 for none")
}

// runLogin drives one authentication over conn and reports each exchange on out.
func runLogin(conn io.ReadWriter, out io.Writer, script loginScript) error {
	req := ipc.Request(ipc.CreateSession{Username: script.Username})
	for step := 0; step < maxLoginSteps; step++ {
		resp, err := roundTrip(conn, out, req)
		if err != nil {
			return err
		}

		switch r := resp.(type) {
		case ipc.AuthMessage:
			req = replyTo(r, script)
		case ipc.Success:
			if len(script.Cmd) == 0 {
				fmt.Fprintln(out, "authenticated")
				return nil
			}
			if _, ok := req.(ipc.StartSession); ok {
				fmt.Fprintln(out, "session started")
				return nil
			}
			env := script.Env
			if env == nil {
				env = []string{}
			}
			req = ipc.StartSession{Cmd: script.Cmd, Env: env}
		case ipc.Error:
			ipc.WriteRequest(conn, ipc.CancelSession{})
			return fmt.Errorf("%w: %s: %s", errLoginFailed, r.ErrorType, r.Description)
		}
	}
	return fmt.Errorf("%w: no result after %d steps", errLoginFailed, maxLoginSteps)
}

func replyTo(msg ipc.AuthMessage, script loginScript) ipc.Request {
	switch msg.AuthMessageType {
	case ipc.AuthMessageSecret:
		return ipc.PostAuthMessageResponse{Response: ipc.Text(script.Password)}
	case ipc.AuthMessageVisible:
		return ipc.PostAuthMessageResponse{Response: ipc.Text(script.Answer)}
	default:
		return ipc.PostAuthMessageResponse{}
	}
}

func roundTrip(conn io.ReadWriter, out io.Writer, req ipc.Request) (ipc.Response, error) {
	fmt.Fprintf(out, "> %s\n", describeRequest(req))
	if err := ipc.WriteRequest(conn, req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	resp, err := ipc.ReadResponse(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	fmt.Fprintf(out, "< %s\n", describeResponse(resp))
	return resp, nil
}

func describeRequest(req ipc.Request) string {
	switch r := req.(type) {
	case ipc.CreateSession:
		return "create_session " + r.Username
	case ipc.PostAuthMessageResponse:
		if r.Response == nil {
			return "post_auth_message_response (empty)"
		}
		return "post_auth_message_response ***"
	case ipc.StartSession:
		return fmt.Sprintf("start_session %v", r.Cmd)
	default:
		return fmt.Sprintf("%T", req)
	}
}

func describeResponse(resp ipc.Response) string {
	switch r := resp.(type) {
	case ipc.AuthMessage:
		return fmt.Sprintf("auth_message [%s] %s", r.AuthMessageType, r.AuthMessage)
	case ipc.Error:
		return fmt.Sprintf("error [%s] %s", r.ErrorType, r.Description)
	default:
		return "success"
	}
}
