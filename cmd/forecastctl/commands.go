package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/verdict/internal/app"
	"github.com/okian/verdict/internal/seed"
)

const dayLayout = "2006-01-02"

var errOrgRequired = errors.New("--org is required")

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the snapshot schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			return writeJSON(cmd.OutOrStdout(), map[string]string{"db_path": cfg.DBPath, "status": "migrated"})
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	sc := seed.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a deterministic synthetic org into the snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.org != "" {
				sc.OrgID = c.org
			}
			ds, err := seed.Generate(sc)
			if err != nil {
				return err
			}
			_, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := seed.Load(cmd.Context(), store, ds, c.log.Named("seed")); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"org_id":         ds.OrgID,
				"current_period": ds.Current().ID,
				"periods":        len(ds.Periods),
				"reps":           len(ds.Reps),
				"deals":          len(ds.Deals),
			})
		},
	}
	cmd.Flags().IntVar(&sc.Managers, "managers", sc.Managers, "Number of sales managers")
	cmd.Flags().IntVar(&sc.RepsPerTeam, "reps-per-team", sc.RepsPerTeam, "Reps under each manager")
	cmd.Flags().IntVar(&sc.DealsPerRep, "deals-per-rep", sc.DealsPerRep, "Deals owned by each rep")
	cmd.Flags().IntVar(&sc.Periods, "periods", sc.Periods, "Quarters to generate, ending with the current one")
	cmd.Flags().Uint64Var(&sc.Seed, "seed", sc.Seed, "Random seed")
	return cmd
}

func (c *cli) periodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List the org's quota periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.org == "" {
				return errOrgRequired
			}
			_, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			periods, err := store.Periods(cmd.Context(), c.org)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), periods)
		},
	}
}

func (c *cli) forecastCmd() *cobra.Command {
	var periodID, previousID string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Compute the forecast report for one quarter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			cfg, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			svc, err := c.service(cfg, store)
			if err != nil {
				return err
			}
			rep, err := svc.Forecast(cmd.Context(), service.Request{Caller: caller, PeriodID: periodID, PreviousPeriodID: previousID})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "Quota period id")
	cmd.Flags().StringVar(&previousID, "previous", "", "Previous period id (defaults to the preceding quarter)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func (c *cli) repsCmd() *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "reps",
		Short: "Break the caller's forecast down by rep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			cfg, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			svc, err := c.service(cfg, store)
			if err != nil {
				return err
			}
			rep, err := svc.RepRollup(cmd.Context(), service.Request{Caller: caller, PeriodID: periodID})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "Quota period id")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func (c *cli) rollupCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Rebuild the daily rollup for one org or every org",
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now().UTC()
			if day != "" {
				parsed, err := time.Parse(dayLayout, day)
				if err != nil {
					return err
				}
				at = parsed
			}
			cfg, store, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			svc, err := c.service(cfg, store)
			if err != nil {
				return err
			}
			var rows int
			if c.org != "" {
				rows, err = svc.RefreshOrg(cmd.Context(), c.org, at)
			} else {
				rows, err = svc.RefreshRollups(cmd.Context(), at)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"day": at.Format(dayLayout), "rows": rows})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Rollup day as YYYY-MM-DD (defaults to today, UTC)")
	return cmd
}
