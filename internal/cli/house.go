package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
)

func newHouseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "house",
		Aliases: []string{"houses"},
		Short:   "Add, list and remove houses",
	}
	cmd.AddCommand(newHouseAddCmd(), newHouseListCmd(), newHouseShowCmd(), newHouseRemoveCmd())
	return cmd
}

func newHouseAddCmd() *cobra.Command {
	var (
		manual              bool
		url                 string
		price, sqft         int64
		bedrooms, bathrooms float64
	)

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Add a house by address",
		Long: `Add a house by address. By default the server looks the listing up on
realtor.com; --manual stores the details given on the command line instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			c := newAPIClient()

			if !manual {
				if !isJSON() {
					fmt.Fprintf(out, "Looking up: %s\n", address)
				}
				h, err := c.AddHouse(cmd.Context(), address)
				if err != nil {
					return fmt.Errorf("adding house: %w", err)
				}
				if isJSON() {
					return printJSON(out, h)
				}
				fmt.Fprintln(out, "House added.")
				printHouse(out, h)
				return nil
			}

			in := client.ManualHouse{Address: address, RealtorURL: url}
			flags := cmd.Flags()
			if flags.Changed("price") {
				in.Price = &price
			}
			if flags.Changed("sqft") {
				in.Sqft = &sqft
			}
			if flags.Changed("bedrooms") {
				in.Bedrooms = &bedrooms
			}
			if flags.Changed("bathrooms") {
				in.Bathrooms = &bathrooms
			}
			h, err := c.AddHouseManual(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("adding house: %w", err)
			}
			if isJSON() {
				return printJSON(out, h)
			}
			fmt.Fprintln(out, "House added.")
			printHouse(out, h)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&manual, "manual", false, "skip the listing lookup and use the flags below")
	f.StringVar(&url, "url", "", "listing URL")
	f.Int64Var(&price, "price", 0, "asking price in dollars")
	f.Int64Var(&sqft, "sqft", 0, "living area in square feet")
	f.Float64Var(&bedrooms, "bedrooms", 0, "number of bedrooms")
	f.Float64Var(&bathrooms, "bathrooms", 0, "number of bathrooms")

	return cmd
}

func newHouseListCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List houses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			houses, err := newAPIClient().ListHouses(cmd.Context(), search)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), houses)
			}
			return printHouseTable(cmd.OutOrStdout(), houses)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "q", "", "only houses whose address contains this text")

	return cmd
}

func newHouseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a house",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("house", args[0])
			if err != nil {
				return err
			}
			h, err := newAPIClient().GetHouse(cmd.Context(), id)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), h)
			}
			printHouse(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newHouseRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a house you added",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("house", args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient().RemoveHouse(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "House #%d removed.\n", id)
			return nil
		},
	}
}
