package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/qubi-project/qubi/cmd/cli/serve"
	"github.com/qubi-project/qubi/cmd/cli/version"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qubi",
		Short:         "Submit quantum circuits to simulators and hardware",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional, used for provider API tokens in development
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Msg("failed to load .env file")
			}
		},
	}

	rootCmd.AddCommand(serve.NewCmd())
	rootCmd.AddCommand(version.NewCmd())

	return rootCmd
}

func Execute() {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
