package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var filter filterFlags

	root := &cobra.Command{
		Use:           "travel-monitor",
		Short:         "Weekly flight and train price monitor with buy alerts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&filter.route, "route", "", "check only the route with this id")
	root.PersistentFlags().BoolVar(&filter.flights, "flights", false, "check flight routes only")
	root.PersistentFlags().BoolVar(&filter.trains, "trains", false, "check train routes only")

	root.AddCommand(checkCmd(&filter))
	root.AddCommand(daemonCmd(&filter))
	root.AddCommand(migrateCmd())
	root.AddCommand(summaryCmd(&filter))
	root.AddCommand(serveCmd())
	return root
}

func checkCmd(filter *filterFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one price check over the configured routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filter.resolve()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			_, err = a.check(cmd.Context(), f)
			return err
		},
	}
}

func daemonCmd(filter *filterFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Check prices repeatedly until interrupted",
		Long: `Run a check every CHECK_INTERVAL (or the routes file's check_interval_hours)
until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filter.resolve()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.daemon(cmd.Context(), f)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import the legacy single-route prices.csv into the history store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			n, err := a.migrate()
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d legacy row(s)\n", n)
			return nil
		},
	}
}

func summaryCmd(filter *filterFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print best prices and cheapest weeks from the stored history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filter.resolve()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.printSummary(cmd.Context(), os.Stdout, f)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only JSON dashboard",
		Long: `Serve the price history over HTTP.

Examples:
  travel-monitor serve
  travel-monitor serve --addr :8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.DashboardAddr
			}
			return a.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default DASHBOARD_ADDR)")
	return cmd
}
