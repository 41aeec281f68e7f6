// Command inventory is an Ansible dynamic inventory script for the lab.
//
//	ansible-playbook -i ./inventory site.yml
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tphummel/lab_inventory/internal/inventory"
	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/render"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// statusError carries a process exit code plus the text for stderr.
// A nil err exits quietly.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *statusError) Unwrap() error { return e.err }

// config is read from the environment.
type config struct {
	logLevel slog.Level
}

// loadConfig reads LOG_LEVEL, defaulting to warn so that stderr only carries
// the diagnostics Ansible is meant to see.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{logLevel: slog.LevelWarn}
	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.logLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}
	return cfg, nil
}

type options struct {
	list   bool
	host   string
	format string
}

func newRootCmd(store *inventory.Store, logger *slog.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "inventory [hostname]",
		Short: "Simple Ansible Inventory",
		Long: `Simple Ansible Inventory.

Prints the lab's host variables as JSON. Ansible calls it with --list
for the whole inventory and --host <name> for a single host.`,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !render.ValidFormats[opts.format] {
				return fmt.Errorf("invalid --format %q (want json or yaml)", opts.format)
			}
			var hostname string
			if len(args) > 0 {
				hostname = args[0]
			}
			return dispatch(cmd, store, logger, opts, hostname)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.list, "list", false, "List all hosts")
	f.StringVar(&opts.host, "host", "", "Get variables for specific hostname")
	f.StringVar(&opts.format, "format", render.FormatJSON, "Output format: json or yaml")
	return cmd
}

// dispatch picks exactly one mode: --list, then --host, then the positional
// hostname, falling back to help.
func dispatch(cmd *cobra.Command, store *inventory.Store, logger *slog.Logger, opts *options, hostname string) error {
	out := cmd.OutOrStdout()

	switch {
	case opts.list:
		logger.Debug("listing inventory", "mode", models.ModeList)
		return write(out, opts.format, store.ListAll())

	case opts.host != "":
		// Unknown hosts print {} and succeed; Ansible reads that as "no vars".
		r, ok := store.Lookup(opts.host)
		logger.Debug("host lookup", "mode", models.ModeHost, "host", opts.host, "found", ok)
		if !ok {
			return write(out, opts.format, struct{}{})
		}
		return write(out, opts.format, r)

	case hostname != "":
		r, ok := store.Lookup(hostname)
		logger.Debug("host lookup", "mode", "positional", "host", hostname, "found", ok)
		if !ok {
			return &statusError{code: 1, err: fmt.Errorf("Host '%s' not found", hostname)}
		}
		return write(out, opts.format, r)

	default:
		if err := cmd.Help(); err != nil {
			return err
		}
		return &statusError{code: 1}
	}
}

func write(w io.Writer, format string, v any) error {
	if err := render.Write(w, format, v); err != nil {
		return &statusError{code: 1, err: err}
	}
	return nil
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	cfg, err := loadConfig(getenv)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	store := inventory.New(inventory.EnvSecrets(getenv))

	cmd := newRootCmd(store, logger)
	// A nil slice would make cobra fall back to os.Args.
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err = cmd.Execute()
	if err == nil {
		return 0
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.err != nil {
			// The not-found line is part of the inventory contract; keep it unprefixed.
			fmt.Fprintln(stderr, statusErr.err)
		}
		return statusErr.code
	}

	// Usage errors: bad flags, too many arguments, unknown format.
	fmt.Fprintln(stderr, "Error:", strings.TrimSpace(err.Error()))
	fmt.Fprintln(stderr, cmd.UsageString())
	return 2
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}
