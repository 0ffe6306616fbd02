package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/hometrace/internal/connection"
	"github.com/evcraddock/hometrace/internal/email"
	"github.com/evcraddock/hometrace/internal/house"
	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/tour"
	"github.com/evcraddock/hometrace/internal/visit"
)

const timeFormat = "2006-01-02 15:04"

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under header with aligned columns, followed by a
// total line. noun is used for the empty and total messages.
func printTable(w io.Writer, noun string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "No %s found.\n", noun)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	underline := make([]string, len(header))
	for i, h := range header {
		underline[i] = strings.Repeat("-", len(h))
	}
	for _, line := range append([][]string{header, underline}, rows...) {
		if _, err := fmt.Fprintln(tw, strings.Join(line, "\t")); err != nil {
			return fmt.Errorf("writing table: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nTotal: %d %s\n", len(rows), noun)
	return err
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatIDPtr(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printHouse(w io.Writer, h *house.House) {
	fmt.Fprintf(w, "House #%d\n", h.ID)
	fmt.Fprintf(w, "  Address:  %s\n", h.Address)
	if h.RealtorURL != "" {
		fmt.Fprintf(w, "  URL:      %s\n", h.RealtorURL)
	}
	if h.Price != nil {
		fmt.Fprintf(w, "  Price:    %s\n", email.FormatPrice(*h.Price))
	}
	if h.Bedrooms != nil {
		fmt.Fprintf(w, "  Beds:     %g\n", *h.Bedrooms)
	}
	if h.Bathrooms != nil {
		fmt.Fprintf(w, "  Baths:    %g\n", *h.Bathrooms)
	}
	if h.Sqft != nil {
		fmt.Fprintf(w, "  Sqft:     %s\n", email.FormatWithCommas(*h.Sqft))
	}
	if h.YearBuilt != nil {
		fmt.Fprintf(w, "  Built:    %d\n", *h.YearBuilt)
	}
	if h.PropertyType != nil {
		fmt.Fprintf(w, "  Type:     %s\n", *h.PropertyType)
	}
	if h.ListingStatus != nil {
		fmt.Fprintf(w, "  Listing:  %s\n", *h.ListingStatus)
	}
}

func printHouseTable(w io.Writer, houses []*house.House) error {
	rows := make([][]string, 0, len(houses))
	for _, h := range houses {
		price := "-"
		if h.Price != nil {
			price = email.FormatPrice(*h.Price)
		}
		beds := "-"
		if h.Bedrooms != nil {
			beds = fmt.Sprintf("%g", *h.Bedrooms)
		}
		baths := "-"
		if h.Bathrooms != nil {
			baths = fmt.Sprintf("%g", *h.Bathrooms)
		}
		rows = append(rows, []string{strconv.FormatInt(h.ID, 10), truncate(h.Address, 40), price, beds, baths})
	}
	return printTable(w, "houses", []string{"ID", "ADDRESS", "PRICE", "BED", "BATH"}, rows)
}

func printVisit(w io.Writer, v *visit.Visit) {
	fmt.Fprintf(w, "Visit #%d (%s)\n", v.ID, v.Status)
	fmt.Fprintf(w, "  House:      #%d\n", v.HouseID)
	fmt.Fprintf(w, "  Buyer:      #%d\n", v.BuyerID)
	fmt.Fprintf(w, "  Scheduled:  %s\n", formatTime(v.ScheduledAt))
	if v.StartedAt != nil {
		fmt.Fprintf(w, "  Started:    %s\n", formatTime(*v.StartedAt))
	}
	if v.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed:  %s\n", formatTime(*v.CompletedAt))
	}
	if v.SuggestionID != nil {
		fmt.Fprintf(w, "  Suggestion: #%d\n", *v.SuggestionID)
	}
	if v.OverallImpression != nil {
		fmt.Fprintf(w, "  Impression: %s\n", *v.OverallImpression)
	}
	if v.WouldBuy != nil {
		answer := "no"
		if *v.WouldBuy {
			answer = "yes"
		}
		fmt.Fprintf(w, "  Would buy:  %s\n", answer)
	}
	if v.Notes != nil && *v.Notes != "" {
		fmt.Fprintf(w, "  Notes:      %s\n", *v.Notes)
	}
}

func printVisitTable(w io.Writer, visits []*visit.Visit) error {
	rows := make([][]string, 0, len(visits))
	for _, v := range visits {
		impression := "-"
		if v.OverallImpression != nil {
			impression = string(*v.OverallImpression)
		}
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			strconv.FormatInt(v.HouseID, 10),
			formatTime(v.ScheduledAt),
			string(v.Status),
			impression,
		})
	}
	return printTable(w, "visits", []string{"ID", "HOUSE", "SCHEDULED", "STATUS", "IMPRESSION"}, rows)
}

func printSuggestion(w io.Writer, s *suggestion.Suggestion) {
	fmt.Fprintf(w, "Suggestion #%d (%s)\n", s.ID, s.Status)
	fmt.Fprintf(w, "  House:    #%d\n", s.HouseID)
	fmt.Fprintf(w, "  Buyer:    #%d\n", s.BuyerID)
	fmt.Fprintf(w, "  Realtor:  #%d\n", s.RealtorID)
	fmt.Fprintf(w, "  When:     %s\n", formatTime(s.SuggestedAt))
	if s.Message != nil && *s.Message != "" {
		fmt.Fprintf(w, "  Message:  %s\n", *s.Message)
	}
	if s.RejectionReason != nil {
		fmt.Fprintf(w, "  Reason:   %s\n", *s.RejectionReason)
	}
}

func printSuggestionTable(w io.Writer, list []*suggestion.Suggestion) error {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		msg := "-"
		if s.Message != nil {
			msg = truncate(orDash(*s.Message), 40)
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			strconv.FormatInt(s.HouseID, 10),
			strconv.FormatInt(s.BuyerID, 10),
			formatTime(s.SuggestedAt),
			string(s.Status),
			msg,
		})
	}
	return printTable(w, "suggestions", []string{"ID", "HOUSE", "BUYER", "WHEN", "STATUS", "MESSAGE"}, rows)
}

func printTour(w io.Writer, t *tour.Tour) error {
	fmt.Fprintf(w, "Tour #%d: %s (%s)\n", t.ID, t.Name, t.Status)
	fmt.Fprintf(w, "  Realtor:  #%d\n", t.RealtorID)
	if t.BuyerID != nil {
		fmt.Fprintf(w, "  Buyer:    #%d\n", *t.BuyerID)
	}
	if t.ScheduledDate != nil {
		fmt.Fprintf(w, "  Date:     %s\n", formatTime(*t.ScheduledDate))
	}
	if t.Notes != "" {
		fmt.Fprintf(w, "  Notes:    %s\n", t.Notes)
	}
	fmt.Fprintln(w)
	return printStopTable(w, t.Stops)
}

func printStopTable(w io.Writer, stops []*tour.Stop) error {
	rows := make([][]string, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, []string{
			strconv.Itoa(s.OrderIndex),
			strconv.FormatInt(s.ID, 10),
			strconv.FormatInt(s.HouseID, 10),
			formatTimePtr(s.EstimatedTime),
			formatIDPtr(s.VisitID),
			truncate(orDash(s.Notes), 30),
		})
	}
	return printTable(w, "stops", []string{"#", "STOP", "HOUSE", "ETA", "VISIT", "NOTES"}, rows)
}

func printTourTable(w io.Writer, tours []*tour.Tour) error {
	rows := make([][]string, 0, len(tours))
	for _, t := range tours {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			truncate(t.Name, 30),
			formatIDPtr(t.BuyerID),
			formatTimePtr(t.ScheduledDate),
			string(t.Status),
		})
	}
	return printTable(w, "tours", []string{"ID", "NAME", "BUYER", "DATE", "STATUS"}, rows)
}

func printConnectionTable(w io.Writer, conns []*connection.Connection) error {
	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			strconv.FormatInt(c.RealtorID, 10),
			strconv.FormatInt(c.BuyerID, 10),
			formatTime(c.CreatedAt),
		})
	}
	return printTable(w, "connections", []string{"ID", "REALTOR", "BUYER", "SINCE"}, rows)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
