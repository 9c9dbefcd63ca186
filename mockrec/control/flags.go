package control

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-appsec/mockrec/mockrec/cli"
	"github.com/go-appsec/mockrec/mockrec/config"
)

var modeNames = []string{"record", "replay", "mock", "passthrough", "stop"}

// clientFlags locate the running service.
type clientFlags struct {
	addr    string
	timeout time.Duration
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.addr, "addr", envOr("MOCKREC_CONTROL_ADDR", config.DefaultControlAddr), "control address of the running service")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "client-side timeout")
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

// ParseState handles `mockrec state`.
func ParseState(args []string) error {
	var cf clientFlags
	var asJSON bool
	fs := newFlagSet("state", `Usage: mockrec state [options]

Show the mode, session and counters of a running service.

Options:
`)
	cf.register(fs)
	fs.BoolVar(&asJSON, "json", false, "print the raw JSON state")

	if err := fs.Parse(args); err != nil {
		return err
	}
	return state(os.Stdout, cf, asJSON)
}

// ParseMode handles `mockrec mode <record|replay|passthrough|stop>`.
func ParseMode(args []string) error {
	var cf clientFlags
	fs := newFlagSet("mode", `Usage: mockrec mode <record|replay|passthrough|stop> [options]

Start a new session in the given mode, or stop the current one. Without an
argument the effective mode is printed.

Options:
`)
	cf.register(fs)
	fs.SetInterspersed(true)

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch fs.NArg() {
	case 0:
		return showMode(os.Stdout, cf)
	case 1:
	default:
		return errors.New("expected a single mode argument")
	}

	name := strings.ToLower(fs.Arg(0))
	valid := false
	for _, m := range modeNames {
		valid = valid || m == name
	}
	if !valid {
		return cli.UnknownSubcommandError("mode", name, modeNames)
	}
	return setMode(os.Stdout, cf, name)
}

// ParseDynamic handles `mockrec dynamic <key> <value>` and `mockrec dynamic --clear`.
func ParseDynamic(args []string) error {
	var cf clientFlags
	var reset bool
	fs := newFlagSet("dynamic", `Usage: mockrec dynamic [<key>] <value> [options]

Track a run-specific value. Recorded bodies replace it with the dynamic
placeholder; replayed bodies resolve the placeholder back to it. The key is the
JSON field name the value belongs to and defaults to "default".

Options:
`)
	cf.register(fs)
	fs.SetInterspersed(true)
	fs.BoolVar(&reset, "clear", false, "remove every tracked value first")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var key, value string
	switch fs.NArg() {
	case 0:
		if !reset {
			return errors.New("value required (or --clear)")
		}
	case 1:
		value = fs.Arg(0)
	case 2:
		key, value = fs.Arg(0), fs.Arg(1)
	default:
		return errors.New("expected [<key>] <value>")
	}
	return setDynamic(os.Stdout, cf, key, value, fs.NArg() > 0, reset)
}
