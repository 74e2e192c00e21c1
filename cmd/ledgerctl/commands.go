package main

import (
	"context"
	"fmt"
	"io"

	"promoledger/config"
	"promoledger/internal/app"
	"promoledger/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	logLevel   string
}

// bootstrap is swapped in tests so commands run against the memory backend.
var bootstrap = func(ctx context.Context, opts *options) (*app.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log, err := logger.New(cfg.Server.Env, level)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Maintenance commands for the sponsorship and affiliate ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.Path(), "path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		withApp(opts, &cobra.Command{Use: "migrate", Short: "Create tables or indexes for the configured backend"},
			func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "migrated %s\n", a.Config.Database.Driver)
				return nil
			}),
		withApp(opts, &cobra.Command{Use: "reset-daily", Short: "Zero today's spend and resume daily-capped sponsorships"},
			func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := a.Sponsorships.ResetDaily(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "day=%s reset=%d resumed=%d\n", res.Day, res.Reset, res.Resumed)
				return nil
			}),
		withApp(opts, &cobra.Command{Use: "activate-due", Short: "Activate approved sponsorships whose start date has passed"},
			func(ctx context.Context, a *app.App, out io.Writer) error {
				n, err := a.Sponsorships.ActivateDue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "activated=%d\n", n)
				return nil
			}),
		newRecomputeCmd(opts),
	)
	return root
}

func newRecomputeCmd(opts *options) *cobra.Command {
	var productID string
	cmd := withApp(opts, &cobra.Command{Use: "recompute-scores", Short: "Recompute ranking scores for one product or all products"},
		func(ctx context.Context, a *app.App, out io.Writer) error {
			if productID != "" {
				res, err := a.Ranking.RecomputeScore(ctx, productID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s score=%.4f sponsored=%.4f popularity=%.4f\n", res.ProductID, res.Score, res.Sponsored, res.Popularity)
				return nil
			}
			results, err := a.Ranking.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Fprintf(out, "%s score=%.4f\n", res.ProductID, res.Score)
			}
			fmt.Fprintf(out, "recomputed=%d\n", len(results))
			return nil
		})
	cmd.Flags().StringVar(&productID, "product", "", "recompute only this product id")
	return cmd
}

func withApp(opts *options, cmd *cobra.Command, run func(context.Context, *app.App, io.Writer) error) *cobra.Command {
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := bootstrap(ctx, opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.Log.Warn("close", zap.Error(err))
			}
		}()
		return run(ctx, a, cmd.OutOrStdout())
	}
	return cmd
}
