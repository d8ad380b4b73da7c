package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxforward/internal/google"
)

func newAuthCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and cache the OAuth token",
		Long: `Run the OAuth flow for an installed application. The command prints an
authorization URL, waits for Google to redirect back to a local listener and
stores the token in the token file (google.token_file, by default in the user
cache directory).

The client secret JSON is read from google.credentials_file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			creds := google.Credentials{
				ClientSecretFile: cfg.Google.CredentialsFile,
				TokenFile:        cfg.Google.TokenFile,
			}
			conf, err := creds.OAuthConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			tok, err := google.Authorize(ctx, conf, google.AuthorizeOptions{
				Out:        cmd.OutOrStdout(),
				ListenAddr: listenAddr,
			})
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			path := creds.TokenPath()
			if err := google.SaveToken(path, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen-addr", "127.0.0.1:0", "Loopback address receiving the OAuth redirect")

	return cmd
}
