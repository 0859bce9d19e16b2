package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/filipexyz/keygate/pkg/client"
)

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage project namespaces",
}

var (
	projectName        string
	projectDescription string
	projectRateLimit   uint32
	projectNamespaceID string
)

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if identity == "" {
			return fmt.Errorf("an identity is required (--identity or config)")
		}
		c := getClient()

		p, err := c.CreateProject(client.CreateProjectRequest{
			NamespaceID:      projectNamespaceID,
			Name:             projectName,
			Description:      projectDescription,
			DefaultRateLimit: projectRateLimit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(p)
			return nil
		}
		out.Success("Project created")
		printProject(p)
		return nil
	},
}

var projectGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		p, err := c.GetProject(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(p)
			return nil
		}
		printProject(p)
		return nil
	},
}

var projectTransferCmd = &cobra.Command{
	Use:   "transfer <address> <new-owner>",
	Short: "Transfer project ownership",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		if err := c.TransferProject(args[0], args[1]); err != nil {
			return err
		}
		out.Success("Project transferred to %s", args[1])
		return nil
	},
}

var projectCloseCmd = &cobra.Command{
	Use:   "close <address>",
	Short: "Close an empty project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		if err := c.CloseProject(args[0]); err != nil {
			return err
		}
		out.Success("Project closed")
		return nil
	},
}

func printProject(p *client.Project) {
	out.Header(p.Name)
	out.KeyValue("Address", p.Address)
	out.KeyValue("Owner", p.Owner)
	out.KeyValue("Namespace", p.NamespaceID)
	if p.Description != "" {
		out.KeyValue("Description", p.Description)
	}
	out.KeyValue("Default rate limit", formatUint(uint64(p.DefaultRateLimit)))
	out.KeyValue("Credentials", fmt.Sprintf("%d total, %d active", p.TotalCredentials, p.ActiveCredentials))
	out.KeyValue("Created at slot", formatUint(p.CreatedAt))
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "project name (required)")
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectCreateCmd.Flags().Uint32Var(&projectRateLimit, "rate-limit", 1000, "default per-window request limit for new credentials")
	projectCreateCmd.Flags().StringVar(&projectNamespaceID, "namespace", "", "namespace ID (32 hex chars, random if omitted)")
	projectCreateCmd.MarkFlagRequired("name")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectTransferCmd)
	projectCmd.AddCommand(projectCloseCmd)
	rootCmd.AddCommand(projectCmd)
}
