// Package cli defines the cobra command tree for hometrace.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
	"github.com/evcraddock/hometrace/internal/db"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ht",
		Short: "Schedule and track house visits",
		Long: "HomeTrace tracks house visits for buyers and realtors. Realtors suggest visit times,\n" +
			"buyers accept or reject them, and both plan multi-stop tours. Run 'ht serve' to start\n" +
			"the API server; every other command talks to a running server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for serve (default: ~/.config/ht/hometrace.db)")

	root.AddCommand(
		newServeCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newHouseCmd(),
		newVisitCmd(),
		newSuggestionCmd(),
		newTourCmd(),
		newConnectionCmd(),
	)

	return root
}

// openDB opens the SQLite database using the --db flag, the configured
// path or the default path, in that order.
func openDB(configured string) (*sql.DB, error) {
	path := flagDB
	if path == "" {
		path = configured
	}
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

// closeDB closes the database, logging any error.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		slog.Warn("closing database", "err", err)
	}
}

// newAPIClient creates an HTTP client for the HomeTrace API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getAPIKey())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// parseID parses a positive numeric ID argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 or a local "YYYY-MM-DD HH:MM" / "YYYY-MM-DD".
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD HH:MM or RFC 3339)", s)
}
