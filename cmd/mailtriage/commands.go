package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"

	"github.com/yaontheroad/email-agents/internal/app"
	"github.com/yaontheroad/email-agents/internal/credential"
	"github.com/yaontheroad/email-agents/internal/respond"
	"github.com/yaontheroad/email-agents/internal/triage"
	"github.com/yaontheroad/email-agents/internal/ui/review"
)

func loadApp() (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: cfgFile,
		EnvFile:    envFile,
		LogLevel:   logLevel,
	})
}

func triageCmd() *cobra.Command {
	var (
		fromDump bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Fetch recent mail and find emails that need a response",
		Long: `Fetch inbound mail from the configured window, classify each message,
mark the ones already answered from the sent folder, and write the record
store and text report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			var res *triage.Result
			run := func(ctx context.Context) error {
				var err error
				res, err = a.Triage(ctx, app.TriageOptions{FromDump: fromDump})
				return err
			}

			if quiet {
				err = run(cmd.Context())
			} else {
				err = spinner.New().
					Title("Analyzing emails...").
					Context(cmd.Context()).
					ActionWithErr(run).
					Run()
			}
			if err != nil {
				return err
			}

			app.RenderSummary(cmd.OutOrStdout(), res)
			fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved to %s\n", a.Config().Files.Path(a.Config().Files.Report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromDump, "from-dump", false, "classify the existing recent-emails dump instead of fetching inbound mail")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "no spinner (for non-interactive use)")

	return cmd
}

func respondCmd() *cobra.Command {
	var accessible bool

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Draft, edit and send replies to the stored emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			stats, err := a.Respond(cmd.Context(), respond.HuhPrompter{Accessible: accessible})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d, declined %d, skipped %d, failed %d.\n",
				stats.Sent, stats.Declined, stats.Skipped, stats.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&accessible, "accessible", os.Getenv("ACCESSIBLE") != "", "plain prompts for screen readers")

	return cmd
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Browse the stored emails that need a response",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			records, updated, err := a.Records()
			if err != nil {
				return err
			}
			return review.Run(records, updated)
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the emails you have replied to",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			app.RenderHistory(cmd.OutOrStdout(), a.Ledger().Entries())
			return nil
		},
	}
}

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets stored in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <name>",
		Short:     "Store a secret (" + strings.Join(credential.Names, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credential.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Value for " + args[0]).
						EchoMode(huh.EchoModePassword).
						Value(&value),
				),
			).Run()
			if err != nil {
				return err
			}

			if err := credential.NewStore().Set(args[0], strings.TrimSpace(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "delete <name>",
		Short:     "Remove a stored secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credential.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.NewStore().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	})

	return cmd
}
