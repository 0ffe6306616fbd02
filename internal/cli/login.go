package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/client"
)

func newLoginCmd() *cobra.Command {
	var server, email, key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long: `Log in to a HomeTrace server and store an API key for CLI access.

The server emails a one-time link. Opening it shows an API key; paste it
at the prompt, or run 'ht login --key <key>' later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), server, email, key)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or "+defaultServerURL+")")
	cmd.Flags().StringVar(&email, "email", "", "email address to send the login link to")
	cmd.Flags().StringVar(&key, "key", "", "API key to store without requesting a login link")

	return cmd
}

func runLogin(ctx context.Context, in io.Reader, out io.Writer, serverFlag, email, key string) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}
	reader := bufio.NewReader(in)

	if key == "" {
		if email == "" {
			var err error
			if email, err = prompt(reader, out, "Email: "); err != nil {
				return err
			}
		}
		if err := client.New(serverURL, "").RequestCLILogin(ctx, email); err != nil {
			return fmt.Errorf("requesting login link: %w", err)
		}
		fmt.Fprintf(out, "If %s may log in, a login link is on its way.\n\n", email)

		var err error
		if key, err = prompt(reader, out, "Paste your API key: "); err != nil {
			return err
		}
	}

	if err := validateAPIKey(key); err != nil {
		return err
	}
	me, err := client.New(serverURL, key).Me(ctx)
	if err != nil {
		return fmt.Errorf("checking API key: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}
	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(out, "✓ Logged in as %s (%s).\n", me.Email, me.Role)
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, "ht_") {
		return fmt.Errorf("invalid API key format (should start with ht_)")
	}
	return nil
}
