package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

const defaultConfig = `log_level: info

registry:
  # Becomes owner and holds every staff role initially.
  deployer: "0x0000000000000000000000000000000000000001"
  # Anonymous holding threshold in whole tokens.
  threshold: "0"

token:
  name: "Kifuda Token"
  symbol: "KFD"
  account: "0x0000000000000000000000000000000000000002"

funding:
  account: "0x0000000000000000000000000000000000000003"
  doc_url: ""
  doc_hash: ""
  exchange_rate_seed: "1"
  exchange_rate_on_top: "0"
  exch_rate_decimals: 0
  # Hard cap on accumulated seed, in whole tokens.
  seed_max_supply: "0"
  deploy_block: 0

api:
  enabled: true
  listen_addr: ":8080"
  jwt_secret: "change-me"
  allow_origins: []

storage:
  journal_path: "kifuda.db"
`

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(cfgFile); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", cfgFile)
	}
	if err := os.WriteFile(cfgFile, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", cfgFile)
	fmt.Println("Edit the deployer address and jwt_secret before serving.")
	return nil
}
