package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Makepad-fr/comuta/internal/cli"
)

func main() {
	// Root flags (apply to every subcommand). Unset flags leave config untouched.
	flag.String("device", "", "LED device base URL, e.g. http://192.168.4.1")
	flag.Duration("timeout", 0, "per-request timeout (0 = none)")
	flag.String("addr", "", "listen address for serve (default :3000)")
	flag.String("policy", "", "overlapping presses: concurrent or drop")
	flag.String("log-level", "", "debug, info, warn or error")
	flag.String("log-format", "", "text or json")
	flag.String("log-file", "", "debug log file used by ui")
	flag.String("theme", "", "classic, neon or mono")
	flag.String("label", "", "button caption used by ui")
	flag.Parse()

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	code := cli.Run(args, cli.Options{
		Overrides: cli.Overrides(flag.CommandLine),
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
