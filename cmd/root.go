package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "auction-server",
	Short: "File-backed auction and escrow server",
	Long: `auction-server runs a multi-user auction house. Users and items live in
fixed-length record files under DATA_DIR; bids are held in escrow until the
auction closes.

	auction-server serve
	auction-server inspect users|items
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
