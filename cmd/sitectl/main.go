package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/app"
	"github.com/sitesmithapp/sitesmith/internal/db"
	"github.com/sitesmithapp/sitesmith/internal/db/migrations"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp connects every backend. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withPostgres runs fn against the database alone, for schema commands.
func withPostgres(fn func(pg *db.PostgresClient) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pg, err := db.NewPostgresClient(cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pg.Close()
	return fn(pg)
}

var rootCmd = &cobra.Command{
	Use:          "sitectl",
	Short:        "Operate a sitesmith installation",
	SilenceUsage: true,
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(func(pg *db.PostgresClient) error {
			if err := migrations.MigrateUp(pg.SQLDB()); err != nil {
				return err
			}
			fmt.Println("Database is up to date")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid steps %q: %w", args[0], err)
			}
			steps = n
		}
		return withPostgres(func(pg *db.PostgresClient) error {
			if err := migrations.MigrateDown(pg.SQLDB(), steps); err != nil {
				return err
			}
			fmt.Printf("Rolled back %d migration(s)\n", steps)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(func(pg *db.PostgresClient) error {
			status, err := migrations.CurrentStatus(pg.SQLDB())
			if err != nil {
				return err
			}
			fmt.Printf("Version: %d\n", status.Version)
			fmt.Printf("Latest:  %d\n", status.Latest)
			if status.Dirty {
				fmt.Println("Dirty:   yes (fix the failed migration and force the version)")
			}
			return nil
		})
	},
}

// deployments command
var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Manage deployments",
}

var deploymentsCancelCmd = &cobra.Command{
	Use:   "cancel <deployment-id>",
	Short: "Cancel a queued or running deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Deployments.Cancel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deployment %s is %s\n", d.ID, d.Status)
		return nil
	},
}

var deploymentsRetryCmd = &cobra.Command{
	Use:   "retry <deployment-id>",
	Short: "Queue a new attempt of a failed or canceled deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Deployments.Retry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Queued deployment %s (version %d)\n", d.ID, d.Version)
		return nil
	},
}

// domains command
var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Manage custom domains",
}

var domainsVerifyCmd = &cobra.Command{
	Use:   "verify <domain-id>",
	Short: "Check a domain's DNS records now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Domains.VerifyDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%s)\n", d.Name, d.Status, d.VerificationStatus)
		if d.VerificationErrors != nil {
			fmt.Printf("  %s\n", *d.VerificationErrors)
		}
		for _, rec := range d.DNSRecords {
			fmt.Printf("  %-5s %s -> %s\n", rec.Type, rec.Host, rec.Value)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	deploymentsCmd.AddCommand(deploymentsCancelCmd, deploymentsRetryCmd)
	domainsCmd.AddCommand(domainsVerifyCmd)
	rootCmd.AddCommand(migrateCmd, deploymentsCmd, domainsCmd)
}
