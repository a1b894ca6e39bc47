package main

import (
	"flag"
	"fmt"
	"os"

	"varg.is/gatewall/cmd"
	"varg.is/gatewall/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initFlags := flag.NewFlagSet("init", flag.ExitOnError)
		configDir := initFlags.String("config-dir", brand.GetConfigDir(), "Configuration directory")
		initFlags.StringVar(configDir, "d", brand.GetConfigDir(), "Configuration directory (short)")
		initFlags.Parse(os.Args[2:])

		if err := cmd.RunInit(*configDir); err != nil {
			fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Verbose output")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := brand.DefaultConfigPath()
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(configFile, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "apply":
		applyFlags := flag.NewFlagSet("apply", flag.ExitOnError)
		configFile := applyFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		applyFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")

		dryRun := applyFlags.Bool("dry-run", false, "Resolve the ruleset without applying it")
		applyFlags.BoolVar(dryRun, "n", false, "Dry run (short)")

		verify := applyFlags.Bool("verify", false, "Spot-check downloaded ranges against the GeoIP database")
		daemon := applyFlags.Bool("daemon", false, "Stay running and refresh country lists periodically")
		applyFlags.Parse(os.Args[2:])

		if err := cmd.RunApply(*configFile, *dryRun, *verify, *daemon); err != nil {
			fmt.Fprintf(os.Stderr, "Apply failed: %v\n", err)
			os.Exit(1)
		}

	case "flush":
		flushFlags := flag.NewFlagSet("flush", flag.ExitOnError)
		configFile := flushFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		flushFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
		flushFlags.Parse(os.Args[2:])

		if err := cmd.RunFlush(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Flush failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		jsonOut := statusFlags.Bool("json", false, "JSON output")
		statusFlags.Parse(os.Args[2:])

		if err := cmd.RunStatus(*jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "lists":
		listsFlags := flag.NewFlagSet("lists", flag.ExitOnError)
		configFile := listsFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		listsFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
		listsFlags.Parse(os.Args[2:])

		if err := cmd.RunLists(*configFile, listsFlags.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Lists failed: %v\n", err)
			os.Exit(1)
		}

	case "lookup":
		lookupFlags := flag.NewFlagSet("lookup", flag.ExitOnError)
		configFile := lookupFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		lookupFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
		lookupFlags.Parse(os.Args[2:])

		if len(lookupFlags.Args()) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: %s lookup <ip>\n", brand.BinaryName)
			os.Exit(1)
		}

		if err := cmd.RunLookup(*configFile, lookupFlags.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
			os.Exit(1)
		}

	case "watchdog":
		wdFlags := flag.NewFlagSet("watchdog", flag.ExitOnError)
		configFile := wdFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		wdFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")

		logFile := wdFlags.String("log-file", "", "Event log file (overrides config)")
		wdFlags.StringVar(logFile, "f", "", "Event log file (short)")
		wdFlags.Parse(os.Args[2:])

		if err := cmd.RunWatchdog(*configFile, *logFile); err != nil {
			fmt.Fprintf(os.Stderr, "Watchdog failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  init      Write a commented default configuration
            Options: --config-dir (-d) <dir>
  check     Validate the configuration file
            Options: --verbose (-v)
  apply     Download country ranges and load the nftables ruleset
            Options: --dry-run (-n), --verify, --daemon, --config (-c) <file>
  flush     Remove the ruleset, restoring an open firewall
  status    Show the loaded ruleset and drop counters
            Options: --json
  lists     Manage cached country lists
            Subcommands: info, refresh, clear
  lookup    Look up an IP in the GeoIP database
  watchdog  Run the connectivity watchdog in the foreground
            Options: --log-file (-f) <file>
  version   Print version information

Examples:
  %s init
  %s check -v /etc/gatewall/gatewall.hcl
  %s apply --verify
  %s apply --daemon
  %s lists refresh
  %s watchdog
`,
		brand.Name, brand.Description,
		brand.LowerName,
		brand.LowerName, brand.LowerName, brand.LowerName,
		brand.LowerName, brand.LowerName, brand.LowerName)
}
