package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

var (
	verbose bool

	// loadConfig is replaced in tests
	loadConfig = config.Load
)

// NewRootCmd creates the screenctl root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenctl",
		Short: "Operate the call screener",
		Long: `screenctl hashes and normalizes numbers with the installation salt
and manages the curated seed snapshot.

Configuration is read the same way the server reads it: config.yaml,
then CALL_SCREENER_* environment variables and a local .env file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewNormalizeCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
