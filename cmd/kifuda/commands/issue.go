package commands

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/shizukutanaka/Kifuda/internal/api"
	"github.com/shizukutanaka/Kifuda/internal/config"
)

// issueCmd represents the issue command
var issueCmd = &cobra.Command{
	Use:   "issue <address>",
	Short: "Issue an API bearer token for an address",
	Long: `Issue a signed bearer token whose addr claim identifies the acting
caller on mutating API endpoints. The signing secret is read from the
config file unless --secret is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.Flags().String("secret", "", "Signing secret (defaults to api.jwt_secret from the config)")
	issueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func runIssue(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("not a hex address: %q", args[0])
	}
	addr := common.HexToAddress(args[0])

	secret, _ := cmd.Flags().GetString("secret")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	if secret == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		secret = cfg.API.JWTSecret
	}
	if secret == "" {
		return fmt.Errorf("no signing secret configured")
	}

	tok, err := api.IssueToken(secret, addr, ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Println(tok)
	return nil
}
