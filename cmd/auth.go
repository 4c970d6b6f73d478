package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwain/inboxpilot/internal/google"
	"github.com/mwain/inboxpilot/internal/source"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Google account credentials",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [account]",
		Short: "Authorize a Google account",
		Long: `Run the out-of-band OAuth flow: open the printed URL, grant access,
and paste the authorization code back. The resulting credential is
stored for both the gmail and calendar sources of the account.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := "default"
			if len(args) == 1 && args[0] != "" {
				account = args[0]
			}

			conf, err := google.OAuthConfig()
			if err != nil {
				return err
			}

			fmt.Printf("Visit the following URL to authorize inboxpilot:\n\n  %s\n\n", google.AuthURL(conf))
			fmt.Print("Enter the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("authorization code is empty")
			}

			cred, err := google.Exchange(cmd.Context(), conf, source.MakeID(source.BackendGmail, account), code)
			if err != nil {
				return err
			}

			// One grant covers both scopes. Store it under each source
			// so the credential manager resolves either independently.
			store := google.NewFileStore(google.CacheDir())
			if err := store.Save(cred); err != nil {
				return fmt.Errorf("failed to save credential: %w", err)
			}
			cred.SourceID = source.MakeID(source.BackendCalendar, account)
			if err := store.Save(cred); err != nil {
				return fmt.Errorf("failed to save credential: %w", err)
			}

			fmt.Printf("Account %q authorized for gmail and calendar.\n", account)
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [account]",
		Short: "Show which sources have stored credentials",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := "default"
			if len(args) == 1 && args[0] != "" {
				account = args[0]
			}

			store := google.NewFileStore(google.CacheDir())
			for _, backend := range []string{source.BackendGmail, source.BackendCalendar} {
				id := source.MakeID(backend, account)
				if store.Has(id) {
					fmt.Printf("%s\tauthorized\n", id)
				} else {
					fmt.Printf("%s\tnot authorized\n", id)
				}
			}
			return nil
		},
	}
}
