// unileapctl is a terminal client for a unileap site. It keeps the session
// in a local profile store the way a browser keeps it in local storage, runs
// the login and signup forms, and renders the navigation bar.
//
// Several unileapctl processes sharing one profile behave like browser tabs:
// with the relay enabled (file store) or the Redis store, "watch" redraws the
// navigation whenever another process logs in or out.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"unileap/cmd/internal/app"
	"unileap/cmd/internal/websession"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "error: %s\n", msg)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	server      string
	store       string
	storagePath string
	redisURL    string
	profile     string
	relay       bool
	logLevel    string
	color       bool
}

const (
	storeFile  = "file"
	storeRedis = "redis"
)

// cli is the per-invocation environment handed to commands.
type cli struct {
	opts   options
	log    *slog.Logger
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"login":   {summary: "sign in and save the session", run: runLogin},
	"signup":  {summary: "create an account and save the session", run: runSignup},
	"logout":  {summary: "revoke and clear the saved session", run: runLogout},
	"whoami":  {summary: "render the navigation for the saved session", run: runWhoami},
	"courses": {summary: "list the course catalog", run: runCourses},
	"watch":   {summary: "redraw the navigation when another tab changes the session", run: runWatch},
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("unileapctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.server, "server", envOr("UNILEAP_SERVER", "http://127.0.0.1:5500"), "site base URL")
	flagSet.StringVar(&opts.store, "store", storeFile, "profile store: file or redis")
	flagSet.StringVar(&opts.storagePath, "storage-path", "", "file store path (default: <config dir>/unileap/storage.json)")
	flagSet.StringVar(&opts.redisURL, "redis-url", envOr("UNILEAP_REDIS_URL", "redis://127.0.0.1:6379/0"), "Redis URL for --store=redis")
	flagSet.StringVar(&opts.profile, "profile", "default", "profile name shared by cooperating tabs")
	flagSet.BoolVar(&opts.relay, "relay", true, "announce and receive session changes through the site relay (file store)")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.color, "color", false, "colorize log output")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return usageError(err.Error())
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return usageError("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return usageError(fmt.Sprintf("unknown command %q", rest[0]))
	}

	switch opts.store {
	case storeFile:
		if opts.storagePath == "" {
			p, err := websession.DefaultFilePath()
			if err != nil {
				return fmt.Errorf("resolve storage path: %w", err)
			}
			opts.storagePath = p
		}
	case storeRedis:
	default:
		return usageError(fmt.Sprintf("unknown store %q", opts.store))
	}
	opts.server = strings.TrimRight(strings.TrimSpace(opts.server), "/")

	c := &cli{
		opts:   opts,
		log:    app.NewLogger(stderr, opts.logLevel, "pretty", opts.color),
		stdin:  bufio.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(ctx, c, rest[1:])
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Usage: unileapctl [flags] <command> [command flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// exitError carries a process exit code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func usageError(msg string) error { return &exitError{code: 2, msg: msg} }
