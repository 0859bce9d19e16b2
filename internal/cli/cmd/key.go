package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/pkg/client"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Issue, verify, and manage credentials",
}

var (
	keyName      string
	keyIndex     uint16
	keyScopes    []string
	keyExpiresAt uint64
	keyRateLimit uint32
	keySecret    string
	keyHash      string
)

// resolveHash turns --secret or --hash into the 64-char hex hash the API
// expects. The raw secret never leaves the machine.
func resolveHash() (string, error) {
	switch {
	case keySecret != "" && keyHash != "":
		return "", fmt.Errorf("--secret and --hash are mutually exclusive")
	case keySecret != "":
		if !domain.ValidateSecretFormat(keySecret) {
			return "", fmt.Errorf("secret must match kg_[a-zA-Z0-9]{32}")
		}
		return domain.HashSecret(keySecret).String(), nil
	case keyHash != "":
		if _, err := domain.ParseHash(keyHash); err != nil {
			return "", fmt.Errorf("hash must be 64 hex chars")
		}
		return keyHash, nil
	default:
		return "", fmt.Errorf("provide --secret or --hash")
	}
}

var keyIssueCmd = &cobra.Command{
	Use:   "issue <project-address>",
	Short: "Issue a new credential",
	Long: `Issue a new credential under a project. A fresh secret is generated
locally and printed exactly once; only its SHA-256 hash is sent to the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if identity == "" {
			return fmt.Errorf("an identity is required (--identity or config)")
		}
		c := getClient()

		secret, hash := domain.GenerateSecret()
		req := client.IssueCredentialRequest{
			Index:      keyIndex,
			Name:       keyName,
			SecretHash: hash.String(),
			Scopes:     keyScopes,
		}
		if keyExpiresAt > 0 {
			req.ExpiresAt = &keyExpiresAt
		}
		if keyRateLimit > 0 {
			req.RateLimit = &keyRateLimit
		}

		cred, err := c.IssueCredential(args[0], req)
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(map[string]any{
				"secret":     secret,
				"credential": cred,
			})
			return nil
		}
		out.Success("Credential issued")
		out.Warn("Secret (shown once): %s", secret)
		printCredential(cred)
		return nil
	},
}

var keyGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Show a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		cred, err := c.GetCredential(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(cred)
			return nil
		}
		printCredential(cred)
		return nil
	},
}

var keyUsageCmd = &cobra.Command{
	Use:   "usage <address>",
	Short: "Show a credential's rate-window counter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		u, err := c.GetUsage(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(u)
			return nil
		}
		out.KeyValue("Window start", formatUint(u.WindowStart))
		out.KeyValue("Requests this window", formatUint(uint64(u.RequestCount)))
		out.KeyValue("Last used at slot", formatUint(u.LastUsedAt))
		return nil
	},
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify <address>",
	Short: "Verify a secret against a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		hash, err := resolveHash()
		if err != nil {
			return err
		}

		res, err := c.Verify(args[0], client.VerifyRequest{
			SecretHash:     hash,
			RequiredScopes: keyScopes,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(res)
			return nil
		}
		out.Success("Verified at slot %d", res.Slot)
		out.KeyValue("Requests this window", formatUint(uint64(res.RequestCount)))
		out.KeyValue("Total verifications", formatUint(res.TotalVerifications))
		return nil
	},
}

var keyRotateCmd = &cobra.Command{
	Use:   "rotate <address>",
	Short: "Rotate a credential's secret",
	Long: `Generate a fresh secret for an active credential. The swap is atomic:
the old secret stops working the instant the new one starts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()

		secret, hash := domain.GenerateSecret()
		req := client.RotateRequest{SecretHash: hash.String()}
		if keyExpiresAt > 0 {
			req.ExpiresAt = &keyExpiresAt
		}

		if err := c.RotateCredential(args[0], req); err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(map[string]string{"secret": secret})
			return nil
		}
		out.Success("Credential rotated")
		out.Warn("New secret (shown once): %s", secret)
		return nil
	},
}

var keyScopesCmd = &cobra.Command{
	Use:   "scopes <address>",
	Short: "Replace a credential's scopes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		if err := c.UpdateScopes(args[0], keyScopes); err != nil {
			return err
		}
		out.Success("Scopes set to [%s]", strings.Join(keyScopes, ", "))
		return nil
	},
}

var keyRateLimitCmd = &cobra.Command{
	Use:   "rate-limit <address>",
	Short: "Replace a credential's per-window limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		if err := c.UpdateRateLimit(args[0], keyRateLimit); err != nil {
			return err
		}
		out.Success("Rate limit set to %d", keyRateLimit)
		return nil
	},
}

var keySuspendCmd = &cobra.Command{
	Use:   "suspend <address>",
	Short: "Suspend an active credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().SuspendCredential(args[0]); err != nil {
			return err
		}
		out.Success("Credential suspended")
		return nil
	},
}

var keyReactivateCmd = &cobra.Command{
	Use:   "reactivate <address>",
	Short: "Reactivate a suspended credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().ReactivateCredential(args[0]); err != nil {
			return err
		}
		out.Success("Credential reactivated")
		return nil
	},
}

var keyRevokeCmd = &cobra.Command{
	Use:   "revoke <address>",
	Short: "Permanently revoke a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().RevokeCredential(args[0]); err != nil {
			return err
		}
		out.Success("Credential revoked")
		return nil
	},
}

var keyCloseUsageCmd = &cobra.Command{
	Use:   "close-usage <address>",
	Short: "Close a credential's usage counter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().CloseUsage(args[0]); err != nil {
			return err
		}
		out.Success("Usage counter closed")
		return nil
	},
}

var keyCloseCmd = &cobra.Command{
	Use:   "close <address>",
	Short: "Close a credential (usage counter must be closed first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().CloseCredential(args[0]); err != nil {
			return err
		}
		out.Success("Credential closed")
		return nil
	},
}

func printCredential(c *client.Credential) {
	out.Header(c.Name)
	out.KeyValue("Address", c.Address)
	out.KeyValue("Project", c.Project)
	out.KeyValue("Index", fmt.Sprintf("%d", c.Index))
	out.KeyValue("Status", c.Status)
	out.KeyValue("Scopes", strings.Join(c.Scopes, ", "))
	out.KeyValue("Rate limit", formatUint(uint64(c.RateLimit)))
	if c.ExpiresAt != nil {
		out.KeyValue("Expires at slot", formatUint(*c.ExpiresAt))
	}
	out.KeyValue("Verifications", fmt.Sprintf("%d ok, %d failed", c.TotalVerifications, c.FailedVerifications))
	if c.LastVerifiedAt != nil {
		out.KeyValue("Last verified at slot", formatUint(*c.LastVerifiedAt))
	}
}

func init() {
	keyIssueCmd.Flags().StringVar(&keyName, "name", "", "credential name")
	keyIssueCmd.Flags().Uint16Var(&keyIndex, "index", 0, "sequential key index (must equal the project's credential count)")
	keyIssueCmd.Flags().StringSliceVar(&keyScopes, "scope", nil, "scope names to grant")
	keyIssueCmd.Flags().Uint64Var(&keyExpiresAt, "expires-at", 0, "expiry slot (0 = never)")
	keyIssueCmd.Flags().Uint32Var(&keyRateLimit, "rate-limit", 0, "per-window limit override (0 = project default)")

	keyVerifyCmd.Flags().StringVar(&keySecret, "secret", "", "raw secret (hashed locally)")
	keyVerifyCmd.Flags().StringVar(&keyHash, "hash", "", "precomputed secret hash (64 hex chars)")
	keyVerifyCmd.Flags().StringSliceVar(&keyScopes, "scope", nil, "scope names to require")

	keyRotateCmd.Flags().Uint64Var(&keyExpiresAt, "expires-at", 0, "new expiry slot (0 = never)")

	keyScopesCmd.Flags().StringSliceVar(&keyScopes, "scope", nil, "scope names to grant")
	keyRateLimitCmd.Flags().Uint32Var(&keyRateLimit, "limit", 0, "per-window request limit")
	keyRateLimitCmd.MarkFlagRequired("limit")

	keyCmd.AddCommand(keyIssueCmd)
	keyCmd.AddCommand(keyGetCmd)
	keyCmd.AddCommand(keyUsageCmd)
	keyCmd.AddCommand(keyVerifyCmd)
	keyCmd.AddCommand(keyRotateCmd)
	keyCmd.AddCommand(keyScopesCmd)
	keyCmd.AddCommand(keyRateLimitCmd)
	keyCmd.AddCommand(keySuspendCmd)
	keyCmd.AddCommand(keyReactivateCmd)
	keyCmd.AddCommand(keyRevokeCmd)
	keyCmd.AddCommand(keyCloseUsageCmd)
	keyCmd.AddCommand(keyCloseCmd)
	rootCmd.AddCommand(keyCmd)
}
