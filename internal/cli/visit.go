package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
	"github.com/evcraddock/hometrace/internal/visit"
)

func newVisitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "visit",
		Aliases: []string{"visits"},
		Short:   "Schedule and record house visits",
	}
	cmd.AddCommand(
		newVisitScheduleCmd(),
		newVisitListCmd(),
		newVisitShowCmd(),
		newVisitActionCmd("start", "Mark a visit as in progress", (*client.Client).StartVisit),
		newVisitCompleteCmd(),
		newVisitActionCmd("cancel", "Cancel a scheduled visit", (*client.Client).CancelVisit),
		newVisitRemoveCmd(),
	)
	return cmd
}

func newVisitScheduleCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "schedule <house-id> <when>",
		Short: "Schedule a visit to a house",
		Long: `Schedule a visit to a house. The time must be in the future.

Time format: "YYYY-MM-DD HH:MM" (local time) or RFC 3339.

Examples:
  ht visit schedule 3 "2030-03-02 14:00"
  ht visit schedule 3 2030-03-02T14:00:00-05:00 --notes "bring tape measure"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			houseID, err := parseID("house", args[0])
			if err != nil {
				return err
			}
			at, err := parseTime(args[1])
			if err != nil {
				return err
			}
			v, err := newAPIClient().ScheduleVisit(cmd.Context(), houseID, at, notes)
			if err != nil {
				return err
			}
			return showVisit(cmd, v, "Visit scheduled.")
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes about the visit")

	return cmd
}

func newVisitListCmd() *cobra.Command {
	var f client.VisitFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.Status != "" {
				f.Status = strings.ToUpper(f.Status)
				if !visit.Status(f.Status).Valid() {
					return fmt.Errorf("invalid status %q", f.Status)
				}
			}
			visits, err := newAPIClient().ListVisits(cmd.Context(), f)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), visits)
			}
			return printVisitTable(cmd.OutOrStdout(), visits)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.Status, "status", "", "SCHEDULED, IN_PROGRESS, COMPLETED or CANCELLED")
	flags.Int64Var(&f.HouseID, "house", 0, "only visits to this house")
	flags.Int64Var(&f.BuyerID, "buyer", 0, "only this buyer's visits (realtors and admins)")
	flags.BoolVar(&f.Upcoming, "upcoming", false, "only scheduled visits that have not happened yet")

	return cmd
}

func newVisitShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			v, err := newAPIClient().GetVisit(cmd.Context(), id)
			if err != nil {
				return err
			}
			return showVisit(cmd, v, "")
		},
	}
}

type visitAction func(c *client.Client, ctx context.Context, id int64) (*visit.Visit, error)

func newVisitActionCmd(use, short string, action visitAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			v, err := action(newAPIClient(), cmd.Context(), id)
			if err != nil {
				return err
			}
			return showVisit(cmd, v, fmt.Sprintf("Visit #%d is now %s.", v.ID, v.Status))
		},
	}
}

func newVisitCompleteCmd() *cobra.Command {
	var (
		fb       client.Feedback
		wouldBuy bool
	)

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a visit and record your impression",
		Long: `Complete a visit. Feedback is optional.

Impressions: LOVED, LIKED, NEUTRAL, DISLIKED

Example:
  ht visit complete 7 --impression liked --would-buy --notes "great yard"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			if fb.OverallImpression != "" {
				fb.OverallImpression = strings.ToUpper(fb.OverallImpression)
				if !visit.Impression(fb.OverallImpression).Valid() {
					return fmt.Errorf("invalid impression %q", fb.OverallImpression)
				}
			}
			if cmd.Flags().Changed("would-buy") {
				fb.WouldBuy = &wouldBuy
			}
			v, err := newAPIClient().CompleteVisit(cmd.Context(), id, fb)
			if err != nil {
				return err
			}
			return showVisit(cmd, v, "Visit completed.")
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fb.OverallImpression, "impression", "", "overall impression")
	flags.BoolVar(&wouldBuy, "would-buy", false, "whether you would buy this house (--would-buy=false for no)")
	flags.StringVarP(&fb.Notes, "notes", "n", "", "notes about the visit")

	return cmd
}

func newVisitRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a visit",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient().RemoveVisit(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Visit #%d removed.\n", id)
			return nil
		},
	}
}

func showVisit(cmd *cobra.Command, v *visit.Visit, headline string) error {
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, v)
	}
	if headline != "" {
		fmt.Fprintln(out, headline)
	}
	printVisit(out, v)
	return nil
}
