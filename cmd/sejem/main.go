// Command sejem is a client for a peer-to-peer marketplace of reusable
// goods. It serves a local web UI, offers the same flows on the command
// line, and can run a local sandbox of the marketplace API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/config"
	"github.com/erazemk/sejem/internal/db"
	"github.com/erazemk/sejem/internal/session"
)

const usage = `Usage: sejem <command> [flags] [args]

` + commandsUsage + "\n" + flagsUsage

const commandsUsage = `Commands:
  serve              run the local web UI
  sandbox            run a local sandbox of the marketplace API
  login              log in and remember the session
  logout             forget the session
  whoami             show the logged-in account
  items              browse and search listings
  show <id>          show a listing with the contact you may see
  buy <id>           request to buy a listing
  complete <id>      mark your pending sale as sold
  history            show your purchases and sales
  post               post a listing
`

const flagsUsage = `Common flags:
  -c, -config <path>  YAML config file (default: sejem.yaml when present)
  -e, -env <path>     .env file (default: .env when present)
      -api <url>      marketplace API URL
      -state <path>   local state database
  -l, -log <path>     also append logs to this file
  -v, -verbose        log debug output
`

// commonFlags are shared by every command.
type commonFlags struct {
	configPath string
	envPath    string
	apiURL     string
	statePath  string
	logPath    string
	verbose    bool
	// daemon commands log at INFO by default, the rest only WARN and up.
	daemon bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "")
	fs.StringVar(&c.configPath, "c", "", "")
	fs.StringVar(&c.envPath, "env", ".env", "")
	fs.StringVar(&c.envPath, "e", ".env", "")
	fs.StringVar(&c.apiURL, "api", "", "")
	fs.StringVar(&c.statePath, "state", "", "")
	fs.StringVar(&c.logPath, "log", "", "")
	fs.StringVar(&c.logPath, "l", "", "")
	fs.BoolVar(&c.verbose, "verbose", false, "")
	fs.BoolVar(&c.verbose, "v", false, "")
}

// resolve loads the configuration, lets explicitly set flags win, and
// installs the logger.
func (c *commonFlags) resolve(fs *flag.FlagSet) (config.Config, func(), error) {
	cfg, err := config.Load(c.configPath, c.envPath)
	if err != nil {
		return cfg, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			cfg.APIURL = c.apiURL
		case "state":
			cfg.StatePath = c.statePath
		case "log", "l":
			cfg.LogPath = c.logPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelWarn
	if c.daemon {
		level = slog.LevelInfo
	}
	if c.verbose {
		level = slog.LevelDebug
	}
	cleanup, err := setupLogger(level, cfg.LogPath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, cleanup, nil
}

// app is the wiring shared by the client-side commands.
type app struct {
	cfg     config.Config
	state   *sql.DB
	api     *client.Client
	session *session.Session
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	state, err := db.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(state); err != nil {
		state.Close()
		return nil, err
	}

	api, err := client.New(client.Config{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		RateLimit:  cfg.RateLimit,
		Burst:      5,
	})
	if err != nil {
		state.Close()
		return nil, err
	}

	sess, err := session.Open(ctx, state, api, client.IsUnauthorized)
	if err != nil {
		state.Close()
		return nil, err
	}
	return &app{cfg: cfg, state: state, api: api, session: sess}, nil
}

func (a *app) Close() error {
	return a.state.Close()
}

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"serve":    cmdServe,
	"sandbox":  cmdSandbox,
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"items":    cmdItems,
	"show":     cmdShow,
	"buy":      cmdBuy,
	"complete": cmdComplete,
	"history":  cmdHistory,
	"post":     cmdPost,
}

// errUsage is returned when a command was invoked incorrectly; its usage
// text has already been printed.
var errUsage = errors.New("usage error")

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "-help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stdout, usage)
		if len(os.Args) < 2 {
			os.Exit(1)
		}
		return
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err := cmd(context.Background(), os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newFlagSet returns a flag set for name that prints the shared usage.
func newFlagSet(name, extra, own string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	common := &commonFlags{}
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stdout, "Usage: sejem %s [flags]%s\n\n", name, extra)
		if own != "" {
			fmt.Fprintf(os.Stdout, "Flags:\n%s\n", own)
		}
		fmt.Fprint(os.Stdout, flagsUsage)
	}
	return fs, common
}

// onlyArg returns the single positional argument of fs.
func onlyArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "expected exactly one %s\n", what)
		fs.Usage()
		return "", errUsage
	}
	return fs.Arg(0), nil
}
