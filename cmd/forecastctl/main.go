// Command forecastctl runs forecast operations against a snapshot database
// from the shell. Results are written to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/verdict/internal/adapters/repository"
	service "github.com/okian/verdict/internal/app"
	"github.com/okian/verdict/internal/config"
	"github.com/okian/verdict/internal/domain/memo"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/logger"
)

func main() {
	if err := logger.InitWriter(os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(logger.Get()).ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// cli holds the flags shared by every subcommand.
type cli struct {
	log    logger.Logger
	dbPath string
	org    string
	role   string
	user   string
	name   string
	seeAll bool
}

func newRootCmd(log logger.Logger) *cobra.Command {
	c := &cli{log: log}
	root := &cobra.Command{
		Use:          "forecastctl",
		Short:        "Inspect and compute sales forecasts from a snapshot database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "Snapshot database path (defaults to the configured db_path)")
	root.PersistentFlags().StringVar(&c.org, "org", "", "Organization id")
	root.PersistentFlags().StringVar(&c.role, "role", string(scope.RoleAdmin), "Caller role: admin|exec|manager|rep")
	root.PersistentFlags().StringVar(&c.user, "user", "", "Caller rep id")
	root.PersistentFlags().StringVar(&c.name, "name", "", "Caller owner name")
	root.PersistentFlags().BoolVar(&c.seeAll, "see-all", false, "Exec caller sees the whole org")

	root.AddCommand(
		c.migrateCmd(),
		c.seedCmd(),
		c.periodsCmd(),
		c.forecastCmd(),
		c.repsCmd(),
		c.rollupCmd(),
	)
	return root
}

// config loads the layered configuration and applies the --db override.
func (c *cli) config(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	return cfg, nil
}

func (c *cli) open(ctx context.Context) (*config.Config, *repository.Store, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.Open(cfg.DBPath, repository.WithLogger(c.log.Named("store")))
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func (c *cli) service(cfg *config.Config, store service.Store) (*service.Service, error) {
	return service.New(store,
		service.WithLogger(c.log.Named("forecast")),
		service.WithFetchConcurrency(cfg.FetchConcurrency),
		service.WithRateLimit(cfg.FetchRatePerSecond),
		service.WithDefaults(cfg.Probabilities()),
		service.WithThresholds(cfg.Thresholds()),
		service.WithChannelOptions(cfg.ChannelOptions()),
		service.WithCache(memo.Nop[*service.Report]()),
	)
}

func (c *cli) caller() (scope.Caller, error) {
	role, err := scope.ParseRole(c.role)
	if err != nil {
		return scope.Caller{}, err
	}
	caller := scope.Caller{OrgID: c.org, UserID: c.user, Name: c.name, Role: role, SeeAll: c.seeAll}
	if err := caller.Validate(); err != nil {
		return scope.Caller{}, err
	}
	return caller, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
