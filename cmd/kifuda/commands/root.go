package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kifuda",
	Short: "Whitelist-gated token ledger and funding panel",
	Long: `Kifuda runs an access-controlled fungible token ledger with a role
registry for whitelisting and funding staff, plus a funding panel that
exchanges deposits of an external seed asset for newly minted tokens.
All state changes are published as events, journaled to SQLite and
exposed over an authenticated HTTP/WebSocket API.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`Kifuda {{.Version}}
Whitelist-gated token ledger and funding panel

License: MIT
Website: https://github.com/shizukutanaka/Kifuda
`)
}
