// Command infoproxygen generates info proxy accessors for Go packages.
//
// Types are marked with an annotation in their doc comment:
//
//	// @infoproxy.InfoProxy{ID: 3}
//	type FriendList struct {
//		// ...
//	}
//
// For each such type, the command writes FriendList.InstanceGetter.g.go into
// the package directory, along with one aggregated file that adds a getter
// for every proxy to the package's registry type.
//
// Usage:
//
//	infoproxygen generate ./...
//	infoproxygen watch ./...
//
// Settings can be provided in infoproxygen.yaml, in INFOPROXYGEN_* environment
// variables or with flags.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jhump/infoproxy/processor"
)

var (
	// Version information, set at build time.
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "infoproxygen",
		Short: "Generate info proxy accessors",
		Long: `infoproxygen finds struct types annotated with @infoproxy.InfoProxy
and generates, for each one, an Instance accessor that fetches the proxy
from the package's info module by its ID. It also generates one getter per
proxy on the info module type itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "path to a config file (default is infoproxygen.yaml in the working directory)")
	flags.BoolP(flagVerbose, "v", false, "enable debug logging")
	flags.Int(flagWorkers, 0, "number of declarations processed concurrently (default GOMAXPROCS)")
	flags.Bool(flagRegister, false, "also generate "+processor.RegistrationFilename+" that registers proxy IDs at init")
	flags.Bool(flagNoDiskCache, false, "do not read or write the on-disk cache")

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
