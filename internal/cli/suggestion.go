package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
	"github.com/evcraddock/hometrace/internal/suggestion"
)

func newSuggestionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "suggestion",
		Aliases: []string{"suggestions", "suggest"},
		Short:   "Suggest visit times and answer suggestions",
		Long: `Realtors suggest visit times to connected buyers. Buyers accept a suggestion,
which schedules the visit, or reject it. A pending suggestion expires 24 hours
before the suggested time.`,
	}
	cmd.AddCommand(
		newSuggestionCreateCmd(),
		newSuggestionListCmd(),
		newSuggestionShowCmd(),
		newSuggestionAcceptCmd(),
		newSuggestionRejectCmd(),
		newSuggestionWithdrawCmd(),
	)
	return cmd
}

func newSuggestionCreateCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "create <buyer-id> <house-id> <when>",
		Short: "Suggest a visit time to a buyer",
		Long: `Suggest a visit time to a connected buyer. The time must be at least 24 hours away.

Example:
  ht suggestion create 4 12 "2030-03-05 10:00" --message "Open house Saturday"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyerID, err := parseID("buyer", args[0])
			if err != nil {
				return err
			}
			houseID, err := parseID("house", args[1])
			if err != nil {
				return err
			}
			at, err := parseTime(args[2])
			if err != nil {
				return err
			}
			s, err := newAPIClient().Suggest(cmd.Context(), client.SuggestRequest{
				BuyerID:     buyerID,
				HouseID:     houseID,
				SuggestedAt: at,
				Message:     message,
			})
			if err != nil {
				return err
			}
			return showSuggestion(cmd, s, "Suggestion sent.")
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message to the buyer")

	return cmd
}

func newSuggestionListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suggestions you sent or received",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status = strings.ToUpper(status)
			if status != "" && !suggestion.Status(status).Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			list, err := newAPIClient().ListSuggestions(cmd.Context(), status)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return printSuggestionTable(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "PENDING, ACCEPTED, REJECTED or EXPIRED")

	return cmd
}

func newSuggestionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("suggestion", args[0])
			if err != nil {
				return err
			}
			s, err := newAPIClient().GetSuggestion(cmd.Context(), id)
			if err != nil {
				return err
			}
			return showSuggestion(cmd, s, "")
		},
	}
}

func newSuggestionAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a suggestion and schedule the visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("suggestion", args[0])
			if err != nil {
				return err
			}
			v, err := newAPIClient().AcceptSuggestion(cmd.Context(), id)
			if err != nil {
				return err
			}
			return showVisit(cmd, v, fmt.Sprintf("Suggestion #%d accepted.", id))
		},
	}
}

func newSuggestionRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("suggestion", args[0])
			if err != nil {
				return err
			}
			s, err := newAPIClient().RejectSuggestion(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			return showSuggestion(cmd, s, "Suggestion rejected.")
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the time does not work")

	return cmd
}

func newSuggestionWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <id>",
		Short: "Withdraw a suggestion you sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("suggestion", args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient().WithdrawSuggestion(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suggestion #%d withdrawn.\n", id)
			return nil
		},
	}
}

func showSuggestion(cmd *cobra.Command, s *suggestion.Suggestion, headline string) error {
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, s)
	}
	if headline != "" {
		fmt.Fprintln(out, headline)
	}
	printSuggestion(out, s)
	return nil
}
