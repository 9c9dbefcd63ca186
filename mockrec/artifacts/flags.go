package artifacts

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/go-appsec/mockrec/mockrec/cli"
	"github.com/go-appsec/mockrec/mockrec/config"
)

var subcommands = []string{"list", "clear", "preload", "help"}

func Parse(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("subcommand required")
	}

	switch args[0] {
	case "list":
		return parseList(args[1:])
	case "clear":
		return parseClear(args[1:])
	case "preload":
		return parsePreload(args[1:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		return cli.UnknownSubcommandError("artifacts", args[0], subcommands)
	}
}

func printUsage() {
	_, _ = fmt.Fprint(os.Stderr, `Usage: mockrec artifacts <command> [options]

Inspect and manage recorded artifacts without a running service.

Commands:
  list       List stored artifacts
  clear      Delete every stored artifact
  preload    Read every artifact and report unreadable ones

Use "mockrec artifacts <command> --help" for more information.
`)
}

// storeFlags are shared by every artifacts subcommand.
type storeFlags struct {
	configPath string
	mockDir    string
}

func (f *storeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file (default: mockrec.yaml, mockrec.yml or mockrec.json)")
	fs.StringVar(&f.mockDir, "mock-dir", "", "artifact storage root (default: from config or "+config.DefaultMockDir+")")
}

// resolve loads the configuration the same way `mockrec serve` does, without flag defaults.
func (f *storeFlags) resolve() (*config.Config, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	path := f.configPath
	if path == "" {
		path = config.Find(".")
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if f.mockDir != "" {
		cfg.MockDir = f.mockDir
	}
	return cfg, nil
}

func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("artifacts "+name, pflag.ContinueOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseList(args []string) error {
	var sf storeFlags
	var asJSON bool
	fs := newFlagSet("list", `Usage: mockrec artifacts list [options]

List stored artifacts with their method, URL and status.

Options:
`)
	sf.register(fs)
	fs.BoolVar(&asJSON, "json", false, "print paths as JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := sf.resolve()
	if err != nil {
		return err
	}
	return list(os.Stdout, cfg, asJSON)
}

func parseClear(args []string) error {
	var sf storeFlags
	var yes bool
	fs := newFlagSet("clear", `Usage: mockrec artifacts clear --yes [options]

Delete the mock directory and recreate it empty.

Options:
`)
	sf.register(fs)
	fs.BoolVarP(&yes, "yes", "y", false, "confirm deletion")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := sf.resolve()
	if err != nil {
		return err
	}
	if !yes {
		return fmt.Errorf("refusing to delete %s without --yes", cfg.MockDir)
	}
	return clearAll(os.Stdout, cfg)
}

func parsePreload(args []string) error {
	var sf storeFlags
	fs := newFlagSet("preload", `Usage: mockrec artifacts preload [options]

Read every stored artifact as the service would at startup and report the result.

Options:
`)
	sf.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := sf.resolve()
	if err != nil {
		return err
	}
	return preload(os.Stdout, cfg)
}
