package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"call-screener/internal/phone"
)

// NewHashCmd creates the hash command
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <number>...",
		Short: "Print the number hash of each argument",
		Long: `Normalize each number to E.164 and print its keyed hash, the value
stored in lists, history and the seed snapshot.

Examples:
  screenctl hash "+91 98765 43210"
  screenctl hash 09876543210 +14155550123`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hasher := phone.NewHasher(&cfg.Phone)

			out := cmd.OutOrStdout()
			for _, raw := range args {
				e164, ok := hasher.Normalize(raw)
				if !ok {
					fmt.Fprintf(out, "%s\tinvalid\n", raw)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", e164, hasher.HashE164(e164))
			}
			return nil
		},
	}
}

// NewNormalizeCmd creates the normalize command
func NewNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <number>...",
		Short: "Print the E.164 form of each argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, raw := range args {
				e164, ok := phone.Normalize(raw, cfg.Phone.HomePrefix)
				if !ok {
					e164 = "invalid"
				}
				fmt.Fprintf(out, "%s\t%s\n", raw, e164)
			}
			return nil
		},
	}
}
