package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"
	gmail_v1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxforward/internal/gmail"
	"github.com/teemow/inboxforward/internal/google"
	"github.com/teemow/inboxforward/internal/logging"
)

func newLabelsCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List mailbox labels and check the processed label",
		Long: `List the labels of the mailbox and report whether the processed label
(scanner.processed_label) exists. The poller never creates it; use --create
to create it here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

			ctx := cmd.Context()
			httpClient, err := google.NewHTTPClient(ctx, google.Credentials{
				ClientSecretFile: cfg.Google.CredentialsFile,
				TokenFile:        cfg.Google.TokenFile,
				Logger:           logger,
			})
			if err != nil {
				return err
			}
			client, err := gmail.NewClient(ctx, gmail.Config{Logger: logger}, option.WithHTTPClient(httpClient))
			if err != nil {
				return err
			}

			labels, err := client.ListLabels(ctx)
			if err != nil {
				return err
			}
			printLabels(cmd.OutOrStdout(), labels)

			name := cfg.Scanner.ProcessedLabel
			if l := gmail.LabelByName(labels, name); l != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nProcessed label %q exists (%s)\n", name, l.Id)
				return nil
			}
			if !create {
				return fmt.Errorf("processed label %q does not exist, rerun with --create", name)
			}

			l, err := client.CreateLabel(ctx, name)
			if err != nil {
				return err
			}
			logger.Info("created processed label", slog.String("label", l.Name), slog.String("label_id", l.Id))
			fmt.Fprintf(cmd.OutOrStdout(), "\nCreated processed label %q (%s)\n", l.Name, l.Id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Create the processed label if it does not exist")
	cmd.Flags().String("label", "", "Name of the processed label (default scanner.processed_label)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flags().Lookup("label"); f.Changed {
			if f.Value.String() == "" {
				return errors.New("--label must not be empty")
			}
			v.Set("scanner.processed_label", f.Value.String())
		}
		return nil
	}

	return cmd
}

func printLabels(w io.Writer, labels []*gmail_v1.Label) {
	sorted := make([]*gmail_v1.Label, 0, len(labels))
	for _, l := range labels {
		if l != nil {
			sorted = append(sorted, l)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].Name < sorted[j].Name
	})
	for _, l := range sorted {
		fmt.Fprintf(w, "%-8s %-24s %s\n", l.Type, l.Id, l.Name)
	}
}
