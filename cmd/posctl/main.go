// posctl 以一次性命令执行计提、聚合、调度与对账，供外部 cron 调用
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/app"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/database"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Dealer commission and payout operations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newMigrateCmd(),
		newAccrueCmd(),
		newAggregateCmd(),
		newScheduleCmd(),
		newReconcileCmd(),
	)
	return root
}

// withApp 加载配置并装配依赖后执行 fn
func withApp(fn func(ctx context.Context, a *app.App) (interface{}, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := logger.Setup(cfg.Log); err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.Init(cfg.Database)
		if err != nil {
			return err
		}
		a, err := app.New(cfg, db)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := fn(cmd.Context(), a)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	if v == nil {
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if _, err := database.Init(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func newAccrueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accrue",
		Short: "Accrue dealer commissions for the last closed month",
		RunE: withApp(func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Commission.AccrueCommissions(ctx, auth.SystemActor())
		}),
	}
}

func newAggregateCmd() *cobra.Command {
	var dealerId, start, end string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate dealer payouts for the current period",
		RunE: withApp(func(ctx context.Context, a *app.App) (interface{}, error) {
			req := logic.AggregateRequest{DealerId: dealerId}
			var err error
			if req.ForcePeriodStart, err = parseFlagTime("start", start); err != nil {
				return nil, err
			}
			if req.ForcePeriodEnd, err = parseFlagTime("end", end); err != nil {
				return nil, err
			}
			return a.Payout.AggregatePayouts(ctx, auth.SystemActor(), req)
		}),
	}
	cmd.Flags().StringVar(&dealerId, "dealer", "", "only aggregate this dealer")
	cmd.Flags().StringVar(&start, "start", "", "forced period start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "forced period end (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily payout schedule",
		RunE: withApp(func(ctx context.Context, a *app.App) (interface{}, error) {
			now := a.Now()
			if at != "" {
				t, err := parseFlagTime("at", at)
				if err != nil {
					return nil, err
				}
				now = *t
			}
			return a.Scheduler.RunDaily(ctx, now)
		}),
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate due dates as of this time instead of now")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Fail payouts stuck in processing past the configured timeout",
		RunE: withApp(func(ctx context.Context, a *app.App) (interface{}, error) {
			count, errs, err := a.Scheduler.ReconcileProcessing(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"reconciled": count, "errors": errs}, nil
		}),
	}
}

func parseFlagTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := cast.ToTimeInDefaultLocationE(value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	t = t.UTC()
	return &t, nil
}
