package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vadimbarashkov/linkcache/internal/app"
	"github.com/vadimbarashkov/linkcache/internal/config"
)

type cli struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "url-shortener",
		Short:         "URL shortener with a write-back click cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.serve,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CONFIG_PATH"),
		"path to the YAML config file (env CONFIG_PATH)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server and the click reconciler",
			Args:  cobra.NoArgs,
			RunE:  c.serve,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE:  c.migrate,
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Apply pending cached clicks to the database once",
			Args:  cobra.NoArgs,
			RunE:  c.reconcile,
		},
		c.createCmd(),
		&cobra.Command{
			Use:   "stats <short code>",
			Short: "Show the click count of a short code",
			Args:  cobra.ExactArgs(1),
			RunE:  c.stats,
		},
	)

	return root
}

func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	return app.New(cmd.Context(), cfg, logger)
}

func (c *cli) serve(cmd *cobra.Command, _ []string) (err error) {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	return a.Serve(cmd.Context())
}

func (c *cli) migrate(cmd *cobra.Command, _ []string) error {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")

	return a.Close()
}

func (c *cli) reconcile(cmd *cobra.Command, _ []string) (err error) {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	report, err := a.Reconciler.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, applied %d (%d clicks), orphaned %d, failed %d in %s\n",
		report.Scanned, report.Applied, report.Clicks, report.Orphaned, report.Failed, report.Duration)

	return nil
}

func (c *cli) createCmd() *cobra.Command {
	var originalURL string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Shorten a URL",
		Example: `  url-shortener create --url="https://go.dev/doc/effective_go"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close())
			}()

			url, created, err := a.URLUseCase.ShortenURL(cmd.Context(), originalURL)
			if err != nil {
				return err
			}

			state := "existing"
			if created {
				state = "created"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", url.ShortCode, url.OriginalURL, state)

			return nil
		},
	}

	cmd.Flags().StringVarP(&originalURL, "url", "u", "", "URL to shorten (required)")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func (c *cli) stats(cmd *cobra.Command, args []string) (err error) {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	url, err := a.URLUseCase.GetURLStats(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d clicks\n", url.ShortCode, url.OriginalURL, url.Clicks)

	return nil
}
