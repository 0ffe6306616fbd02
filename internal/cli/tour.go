package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
	"github.com/evcraddock/hometrace/internal/tour"
)

func newTourCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tour",
		Aliases: []string{"tours"},
		Short:   "Plan multi-house tours",
	}
	cmd.AddCommand(
		newTourCreateCmd(),
		newTourListCmd(),
		newTourShowCmd(),
		newTourStatusCmd(),
		newTourAddStopCmd(),
		newTourRemoveStopCmd(),
		newTourLinkCmd(),
		newTourRemoveCmd(),
	)
	return cmd
}

func newTourCreateCmd() *cobra.Command {
	var (
		buyerID int64
		date    string
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Plan a tour",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.TourRequest{Name: strings.Join(args, " "), Notes: notes}
			if buyerID != 0 {
				req.BuyerID = &buyerID
			}
			if date != "" {
				at, err := parseTime(date)
				if err != nil {
					return err
				}
				req.ScheduledDate = &at
			}
			t, err := newAPIClient().CreateTour(cmd.Context(), req)
			if err != nil {
				return err
			}
			return showTour(cmd, t, "Tour created.")
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&buyerID, "buyer", 0, "connected buyer the tour is for")
	flags.StringVar(&date, "date", "", "when the tour happens")
	flags.StringVarP(&notes, "notes", "n", "", "notes about the tour")

	return cmd
}

func newTourListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status = strings.ToUpper(status)
			if status != "" && !tour.Status(status).Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			tours, err := newAPIClient().ListTours(cmd.Context(), status)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), tours)
			}
			return printTourTable(cmd.OutOrStdout(), tours)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "PLANNED, IN_PROGRESS, COMPLETED or CANCELLED")

	return cmd
}

func newTourShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a tour and its stops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tour", args[0])
			if err != nil {
				return err
			}
			t, err := newAPIClient().GetTour(cmd.Context(), id)
			if err != nil {
				return err
			}
			return showTour(cmd, t, "")
		},
	}
}

func newTourStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a tour to a new status",
		Long: `Move a tour to a new status.

PLANNED -> IN_PROGRESS or CANCELLED
IN_PROGRESS -> COMPLETED or CANCELLED`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tour", args[0])
			if err != nil {
				return err
			}
			status := strings.ToUpper(args[1])
			if !tour.Status(status).Valid() {
				return fmt.Errorf("invalid status %q", args[1])
			}
			t, err := newAPIClient().UpdateTourStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return showTour(cmd, t, fmt.Sprintf("Tour #%d is now %s.", t.ID, t.Status))
		},
	}
}

func newTourAddStopCmd() *cobra.Command {
	var (
		eta   string
		notes string
	)

	cmd := &cobra.Command{
		Use:   "add-stop <tour-id> <house-id>",
		Short: "Add a house to the end of a tour",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tourID, err := parseID("tour", args[0])
			if err != nil {
				return err
			}
			houseID, err := parseID("house", args[1])
			if err != nil {
				return err
			}
			req := client.StopRequest{HouseID: houseID, Notes: notes}
			if eta != "" {
				at, err := parseTime(eta)
				if err != nil {
					return err
				}
				req.EstimatedTime = &at
			}
			s, err := newAPIClient().AddStop(cmd.Context(), tourID, req)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop #%d added (house #%d, position %d).\n", s.ID, s.HouseID, s.OrderIndex)
			return nil
		},
	}

	cmd.Flags().StringVar(&eta, "eta", "", "estimated arrival time")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "notes about the stop")

	return cmd
}

func newTourRemoveStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-stop <tour-id> <stop-id>",
		Short: "Remove a stop from a tour",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tourID, err := parseID("tour", args[0])
			if err != nil {
				return err
			}
			stopID, err := parseID("stop", args[1])
			if err != nil {
				return err
			}
			if err := newAPIClient().RemoveStop(cmd.Context(), tourID, stopID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop #%d removed from tour #%d.\n", stopID, tourID)
			return nil
		},
	}
}

func newTourLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <stop-id> <visit-id>",
		Short: "Record the visit made at a tour stop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stopID, err := parseID("stop", args[0])
			if err != nil {
				return err
			}
			visitID, err := parseID("visit", args[1])
			if err != nil {
				return err
			}
			s, err := newAPIClient().LinkStop(cmd.Context(), stopID, visitID)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop #%d linked to visit #%d.\n", s.ID, visitID)
			return nil
		},
	}
}

func newTourRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a tour",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tour", args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient().RemoveTour(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tour #%d removed.\n", id)
			return nil
		},
	}
}

func showTour(cmd *cobra.Command, t *tour.Tour, headline string) error {
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, t)
	}
	if headline != "" {
		fmt.Fprintln(out, headline)
	}
	return printTour(out, t)
}
