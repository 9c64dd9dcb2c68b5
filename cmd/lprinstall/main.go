// Command lprinstall drives the recognition engine's container
// lifecycle: pull, stop+remove the previous instance, and run a fresh
// one bound to the token/license pair the appliance was provisioned
// with. The engine's own internals are out of scope; this binary only
// ever talks to the local docker or podman daemon.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stroemhansen/yolocam/internal/deploy"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "install":
		handle(args, (*Installer).Install)
	case "uninstall":
		handle(args, (*Installer).Uninstall)
	case "update":
		handle(args, (*Installer).Update)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "lprinstall: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handle(args []string, action func(*Installer) error) {
	fs := flag.NewFlagSet("lprinstall", flag.ExitOnError)
	token := fs.String("token", "", "recognition engine API token (required)")
	license := fs.String("license", "", "recognition engine license key (required)")
	image := fs.String("image", "", "override the recognition engine image reference")
	runtime := fs.String("runtime", "", "container runtime to use (docker or podman); auto-detected if omitted")
	dryRun := fs.Bool("dry-run", false, "print the commands that would run without executing them")
	fs.Parse(args)

	if *token == "" || *license == "" {
		fmt.Fprintln(os.Stderr, "lprinstall: --token and --license are both required")
		fs.Usage()
		os.Exit(1)
	}

	rt := *runtime
	if rt == "" {
		detected, err := DetectRuntime(deploy.NewExecutor(false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "lprinstall: %v\n", err)
			os.Exit(1)
		}
		rt = detected
	}

	installer := NewInstaller(rt, *image, *token, *license, *dryRun)
	if err := action(installer); err != nil {
		fmt.Fprintf(os.Stderr, "lprinstall: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lprinstall - recognition engine container lifecycle manager

Usage: lprinstall <command> --token <token> --license <license> [options]

Commands:
  install     Pull the engine image and start a fresh container
  update      Re-pull the engine image and recreate the container
  uninstall   Stop and remove the engine container
  help        Show this help message

Options:
  --token <token>      Recognition engine API token (required)
  --license <license>  Recognition engine license key (required)
  --image <ref>        Override the engine image reference
  --runtime <name>     Force "docker" or "podman" instead of auto-detecting
  --dry-run            Print the commands that would run without executing them`)
}
