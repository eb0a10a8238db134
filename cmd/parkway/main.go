package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/account"
	"github.com/railzwaylabs/parkway/internal/capacity"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	"github.com/railzwaylabs/parkway/internal/duration"
	"github.com/railzwaylabs/parkway/internal/facility"
	"github.com/railzwaylabs/parkway/internal/migration"
	"github.com/railzwaylabs/parkway/internal/observability"
	"github.com/railzwaylabs/parkway/internal/parking"
	"github.com/railzwaylabs/parkway/internal/payment"
	"github.com/railzwaylabs/parkway/internal/pricing"
	"github.com/railzwaylabs/parkway/internal/redis"
	"github.com/railzwaylabs/parkway/internal/scheduler"
	"github.com/railzwaylabs/parkway/internal/seed"
	"github.com/railzwaylabs/parkway/internal/server"
	"github.com/railzwaylabs/parkway/internal/session"
	"github.com/railzwaylabs/parkway/internal/transaction"
	"github.com/railzwaylabs/parkway/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "parkway",
		Short:   "Parkway parking session service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSeedCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the parking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create facilities and register vehicles from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "seed file")
	return cmd
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

// baseModules are shared by every command.
func baseModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(registerSnowflake),
		db.Module,
	)
}

// domainModules wire the parking core and its collaborators.
func domainModules() fx.Option {
	return fx.Options(
		clock.Module,
		redis.Module,
		pricing.Module,
		duration.Module,
		capacity.Module,
		session.Module,
		account.Module,
		facility.Module,
		transaction.Module,
		payment.Module,
		parking.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		baseModules(),
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		baseModules(),
		migration.SchemaGate,
		domainModules(),
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func runSeed(ctx context.Context, path string) error {
	file, err := seed.Load(path)
	if err != nil {
		return err
	}

	var seeder *seed.Seeder
	app := fx.New(
		baseModules(),
		migration.SchemaGate,
		domainModules(),
		fx.Provide(seed.New),
		fx.Populate(&seeder),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	res, err := seeder.Apply(ctx, file)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	for _, id := range res.Facilities {
		fmt.Fprintf(os.Stdout, "facility %s\n", id)
	}
	fmt.Fprintf(os.Stdout, "%d vehicles registered\n", res.Vehicles)
	return nil
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(readNodeIDFromEnv())
	if err != nil {
		panic(err)
	}
	return node
}

func readNodeIDFromEnv() int64 {
	if v := strings.TrimSpace(os.Getenv("PARKWAY_NODE_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 1
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
