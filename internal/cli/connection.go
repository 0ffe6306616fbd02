package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConnectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"connections"},
		Short:   "Manage realtor and buyer connections",
	}
	cmd.AddCommand(newConnectionAddCmd(), newConnectionListCmd(), newConnectionRemoveCmd())
	return cmd
}

func newConnectionAddCmd() *cobra.Command {
	var realtorID int64

	cmd := &cobra.Command{
		Use:   "add <buyer-id>",
		Short: "Connect a buyer to a realtor",
		Long:  "Connect a buyer to a realtor. Realtors connect to themselves; admins pass --realtor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyerID, err := parseID("buyer", args[0])
			if err != nil {
				return err
			}
			c, err := newAPIClient().Connect(cmd.Context(), realtorID, buyerID)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection #%d: realtor #%d and buyer #%d.\n", c.ID, c.RealtorID, c.BuyerID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&realtorID, "realtor", 0, "realtor ID (defaults to you)")

	return cmd
}

func newConnectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conns, err := newAPIClient().ListConnections(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), conns)
			}
			return printConnectionTable(cmd.OutOrStdout(), conns)
		},
	}
}

func newConnectionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("connection", args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient().RemoveConnection(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection #%d removed.\n", id)
			return nil
		},
	}
}
