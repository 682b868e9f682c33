package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/crawl-tracker/internal/adapter/postgres"
	"github.com/user/crawl-tracker/internal/app"
	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/internal/usecase"
	"github.com/user/crawl-tracker/pkg/config"
	"github.com/user/crawl-tracker/pkg/logger"
)

type cli struct {
	cfgFile string
	debug   bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "crawlctl",
		Short:         "Crawl pages and inspect crawl state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return err
			}
			level := logger.ParseLevel(cfg.Log.Level)
			if c.debug {
				level = logger.ParseLevel("debug")
			}
			logger.Init(os.Stderr, level, "text")
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		c.crawlCmd(),
		c.recrawlCmd(),
		c.pageCmd(),
		c.historyCmd(),
		c.domainsCmd(),
		c.statsCmd(),
		c.sweepCmd(),
		c.migrateCmd(),
	)
	return root
}

// withApp builds the application for a single command and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := app.New(cmd.Context(), c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl URL...",
		Short: "Crawl URLs that have not been seen before",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				views := make([]*entity.PageView, 0, len(args))
				var failed int
				for _, raw := range args {
					view, err := a.Crawler.CrawlURL(cmd.Context(), raw)
					var crawlErr *entity.CrawlError
					switch {
					case errors.As(err, &crawlErr):
						failed++
					case err != nil:
						return err
					}
					views = append(views, view)
				}
				renderViews(cmd.OutOrStdout(), views)
				if failed > 0 {
					return fmt.Errorf("%d of %d crawls failed", failed, len(args))
				}
				return nil
			})
		},
	}
}

func (c *cli) recrawlCmd() *cobra.Command {
	var queue bool
	cmd := &cobra.Command{
		Use:   "recrawl URL",
		Short: "Fetch a known page again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				if queue {
					id, err := a.Crawler.EnqueueRecrawl(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (request %s)\n", args[0], id)
					return nil
				}
				view, err := a.Crawler.Recrawl(cmd.Context(), args[0])
				if view != nil {
					renderViews(cmd.OutOrStdout(), []*entity.PageView{view})
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "queue the recrawl for the background workers instead of running it now")
	return cmd
}

func (c *cli) pageCmd() *cobra.Command {
	var showContent bool
	cmd := &cobra.Command{
		Use:   "page URL",
		Short: "Show the stored state of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				page, err := a.Reporter.GetPageDetails(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if page == nil {
					return fmt.Errorf("page %s has not been crawled", args[0])
				}
				renderPage(cmd.OutOrStdout(), page, showContent)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showContent, "content", false, "print the stored markdown")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history URL",
		Short: "List crawl attempts for a page, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				history, err := a.Reporter.GetHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				renderHistory(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
}

func (c *cli) domainsCmd() *cobra.Command {
	var page, perPage int
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List registered domains, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				list, err := a.Reporter.ListDomains(cmd.Context(), page, perPage)
				if err != nil {
					return err
				}
				renderDomains(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "domains per page")

	cmd.AddCommand(&cobra.Command{
		Use:   "add DOMAIN",
		Short: "Register a domain without crawling any of its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return addDomain(cmd.Context(), a.Crawler, cmd.OutOrStdout(), args[0])
			})
		},
	})
	return cmd
}

func addDomain(ctx context.Context, crawler usecase.Crawler, w io.Writer, name string) error {
	domain, err := crawler.AddDomain(ctx, name)
	if err != nil {
		return err
	}
	renderDomain(w, domain)
	return nil
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show page counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				stats, err := a.Reporter.GetStats(cmd.Context())
				if err != nil {
					return err
				}
				renderStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail pages stuck in crawling for longer than the crawl TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				n, err := a.Reconciler.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stuck page(s)\n", n)
				return nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.MigrateUp(c.cfg.Database.DSN())
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.MigrateDown(c.cfg.Database.DSN(), steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
