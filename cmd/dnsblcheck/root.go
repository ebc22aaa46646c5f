package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for dnsblcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dnsblcheck",
		Short: "Check whether a mail server is on a DNS blacklist",
		Long: `dnsblcheck submits a mail-exchange host to the dnsbl.info lookup form,
downloads the status image shown for every blacklist provider and compares
each image against the known "clean" and "listed" images.

The host is reported clean only if every provider outside the ignore list
shows the clean image.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
	}
	return exitCodeFor(err)
}
