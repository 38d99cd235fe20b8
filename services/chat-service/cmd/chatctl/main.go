// Command chatctl is a small terminal client for the chat service. It keeps
// the session in a bbolt file so consecutive invocations stay signed in.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/pkg/client"
	"github.com/vasapolrittideah/chatdesk/shared/logger"
)

const usage = `usage: chatctl [-server URL] [-state FILE] <command> [flags]

commands:
  register -first NAME -last NAME -email EMAIL -password PASSWORD
  login    -email EMAIL -password PASSWORD
  me
  send     [-conversation ID] MESSAGE
  logout
`

func main() {
	log := logger.New(envOr("CHATCTL_LOG_LEVEL", "warn"), true)

	fs := flag.NewFlagSet("chatctl", flag.ExitOnError)
	server := fs.String("server", envOr("CHATCTL_SERVER", "http://localhost:8080"), "chat service base URL")
	state := fs.String("state", envOr("CHATCTL_STATE", defaultStatePath()), "session state file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	if err := os.MkdirAll(filepath.Dir(*state), 0o700); err != nil {
		log.Fatal().Err(err).Msg("failed to create state directory")
	}

	store, err := client.OpenBoltTokenStore(*state)
	if err != nil {
		log.Fatal().Err(err).Str("path", *state).Msg("failed to open session state")
	}
	defer store.Close()

	c, err := client.New(*server, client.WithTokenStore(store))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := run(ctx, c, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		if errors.Is(err, client.ErrReauthenticationRequired) {
			fmt.Fprintln(os.Stderr, "session expired, run chatctl login")
			os.Exit(1)
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "%d: %s\n", apiErr.StatusCode, apiErr.Message)
			os.Exit(1)
		}
		log.Error().Err(err).Str("command", fs.Arg(0)).Msg("command failed")
		os.Exit(1)
	}

	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) (any, error) {
	switch cmd {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		first := fs.String("first", "", "first name")
		last := fs.String("last", "", "last name")
		email := fs.String("email", "", "e-mail address")
		password := fs.String("password", os.Getenv("CHATCTL_PASSWORD"), "password")
		_ = fs.Parse(args)

		return c.Register(ctx, client.RegisterRequest{
			FirstName: *first,
			LastName:  *last,
			Email:     *email,
			Password:  *password,
		})
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "e-mail address")
		password := fs.String("password", os.Getenv("CHATCTL_PASSWORD"), "password")
		_ = fs.Parse(args)

		return c.Login(ctx, client.LoginRequest{Email: *email, Password: *password})
	case "me":
		return c.Me(ctx)
	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		conversation := fs.String("conversation", "", "conversation id")
		_ = fs.Parse(args)

		message := strings.Join(fs.Args(), " ")
		if message == "" {
			return nil, errors.New("send needs a message")
		}

		return c.SendMessage(ctx, client.SendMessageRequest{
			ConversationID: *conversation,
			Message:        message,
		})
	case "logout":
		if err := c.Logout(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Logged out successfully"}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chatctl.db"
	}

	return filepath.Join(dir, "chatctl", "session.db")
}
