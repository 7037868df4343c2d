package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

// newRoot also returns the command context so the caller can release what
// the commands opened.
func newRoot() (*cobra.Command, *commandContext) {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "hardsub",
		Short:         "Turn a folder of videos into hard-subtitled videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: LOG_LEVEL)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newExtractAudioCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newBurnCommand(ctx))
	rootCmd.AddCommand(newSRTToTextCommand())
	rootCmd.AddCommand(newJSONToTextCommand())

	return rootCmd, ctx
}
