package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/go-appsec/mockrec/mockrec/artifacts"
	"github.com/go-appsec/mockrec/mockrec/cli"
	"github.com/go-appsec/mockrec/mockrec/config"
	"github.com/go-appsec/mockrec/mockrec/control"
	"github.com/go-appsec/mockrec/mockrec/logging"
	"github.com/go-appsec/mockrec/mockrec/service"
)

var validCommands = []string{"serve", "mode", "state", "dynamic", "artifacts", "version", "help"}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printRootUsage()
		return 1
	}

	var err error
	switch args[0] {
	case "serve":
		err = serve(args[1:])
	case "mode":
		err = control.ParseMode(args[1:])
	case "state":
		err = control.ParseState(args[1:])
	case "dynamic":
		err = control.ParseDynamic(args[1:])
	case "artifacts":
		err = artifacts.Parse(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("mockrec version %s\n", config.Version)
		return 0
	case "help", "--help", "-h":
		printRootUsage()
		return 0
	default:
		err = cli.UnknownCommandError(args[0], validCommands)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func serve(args []string) error {
	flags, err := service.ParseServeFlags(args)
	if err != nil {
		return err
	}
	cfg, err := service.ResolveConfig(flags, ".")
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	srv, err := service.NewServer(cfg, service.Options{Ephemeral: flags.Ephemeral}, logger)
	if err != nil {
		return err
	}
	return srv.Run(context.Background())
}

func printRootUsage() {
	_, _ = fmt.Fprint(os.Stderr, `Usage: mockrec <command> [options]

Commands:
  serve      Run the intercepting proxy and control server
  mode       Show the mode, or start a record/replay/passthrough session, or stop it
  state      Show session state and counters of the running service
  dynamic    Track a run-specific value for placeholder substitution
  artifacts  List, preload or clear recorded artifacts on disk
  version    Print the version

Browser tests route HTTP through the proxy (default: http://`+config.DefaultProxyAddr+`).
Test harnesses drive sessions over MCP at http://`+config.DefaultControlAddr+`/mcp.

Use "mockrec <command> --help" for specific command usage.
`)
}
