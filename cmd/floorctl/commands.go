package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"floorpulse-backend/internal/badge"
	"floorpulse-backend/internal/config"
	"floorpulse-backend/internal/cooldown"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/repository"
	"floorpulse-backend/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	storeURL     string
	predictorURL string
	timeout      time.Duration
}

func (o *cliOptions) store() (repository.StoreClient, error) {
	if o.storeURL == "" {
		return repository.StoreClient{}, errors.New("store url is required (--store or STORE_BASE_URL)")
	}
	return repository.NewStoreClient(o.storeURL, o.timeout), nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	_ = godotenv.Load()
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "floorctl",
		Short:         "Inspect attendance, stock and production from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.storeURL, "store", strings.TrimRight(os.Getenv("STORE_BASE_URL"), "/"), "base URL of the floor store")
	root.PersistentFlags().StringVar(&opts.predictorURL, "predictor", strings.TrimRight(os.Getenv("PREDICTOR_BASE_URL"), "/"), "base URL of the predictor (defaults to the store)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")

	root.AddCommand(
		newRosterCmd(opts),
		newReorderCmd(opts),
		newMetricsCmd(opts),
		newScanCmd(opts),
		newBadgeCmd(opts),
		newTokenCmd(),
	)
	return root
}

func newRosterCmd(opts *cliOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print each employee's attendance state for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.Parse(domain.DateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q (use YYYY-MM-DD)", date)
				}
				day = parsed
			}
			store, err := opts.store()
			if err != nil {
				return err
			}
			svc := &service.AttendanceService{Employees: store, Output: store}
			if err := svc.Refresh(cmd.Context()); err != nil {
				return err
			}
			rep, prodErr := svc.Report(cmd.Context(), day)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tSTATE\tHOURS")
			for _, e := range rep.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Employee.ID, e.Employee.Name, e.Employee.Department, e.State, e.Duration)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %d present, %d checked out, %d absent of %d\n",
				rep.Date, rep.Present, rep.CheckedOut, rep.Absent, rep.Total)

			if prodErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "production log unavailable: %v\n", prodErr)
				return nil
			}
			output := service.ShiftTotals(rep.Production)
			if len(output) == 0 {
				return nil
			}
			tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nDEPARTMENT\tDAY SHIFT\tNIGHT SHIFT\tTOTAL")
			for _, d := range output {
				fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\n", d.Department, d.DayShift, d.NightShift, d.Total)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to report (YYYY-MM-DD, default today)")
	return cmd
}

func newReorderCmd(opts *cliOptions) *cobra.Command {
	var onlyReorder bool
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Evaluate stock against restock lead times",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			views, err := service.StockService{Store: store}.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MATERIAL\tQUANTITY\tDAILY USE\tLEAD DAYS\tAFTER LEAD\tSTATUS")
			for _, v := range views {
				if onlyReorder && v.Status != domain.StockReorder {
					continue
				}
				fmt.Fprintf(tw, "%s\t%.2f %s\t%.2f\t%d\t%.2f\t%s\n",
					v.Material, v.Quantity, v.Unit, v.AvgDailyUse, v.LeadTimeDays, v.RemainingAfterLeadTime, v.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&onlyReorder, "only-reorder", false, "show only items that need reordering")
	return cmd
}

func newMetricsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Run one production aggregation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			predictorURL := opts.predictorURL
			if predictorURL == "" {
				predictorURL = opts.storeURL
			}
			svc := &service.ProductionService{
				Stock:      store,
				Employees:  store,
				Predictor:  repository.NewPredictorClient(predictorURL, opts.timeout),
				Heuristics: config.HeuristicsFromEnv(),
				Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			}
			m, err := svc.Compute(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fallback := ""
			if m.PredictionFallback {
				fallback = " (fallback)"
			}
			fmt.Fprintf(w, "predicted completion: %.2f%s\n", m.PredictedCompletion, fallback)
			fmt.Fprintf(w, "actual completion:    %.2f\n", m.ActualCompletion)
			fmt.Fprintf(w, "target completion:    %.2f\n", m.TargetCompletion)
			fmt.Fprintf(w, "efficiency:           %.1f%% (%s), target achieved %.1f%%\n", m.Efficiency, m.EfficiencyBand, m.TargetAchieved)
			fmt.Fprintf(w, "components available: %.2f\n", m.AvailableComponents)
			fmt.Fprintf(w, "workers present:      %d (%.0f work hours)\n", m.NumWorkersPresent, m.WorkHours)

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nAGE GROUP\tTOTAL\tWORKING\tEFFICIENCY")
			for _, b := range m.AgeSummary {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\n", b.AgeGroup, b.Total, b.Working, b.Efficiency)
			}
			return tw.Flush()
		},
	}
}

func newScanCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <payload>",
		Short: "Submit one decoded badge payload as a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			svc := &service.ScanService{
				Store:     store,
				Registrar: store,
				Cooldown:  cooldown.New(time.Second, 1, nil),
				Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			}
			res, err := svc.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch res.Outcome {
			case domain.ScanToggled:
				state := "checked out"
				if res.Working {
					state = "checked in"
				}
				fmt.Fprintf(w, "%s %s\n", res.EmployeeID, state)
			case domain.ScanUnknownUser:
				fmt.Fprintf(w, "%s is not registered\n", res.EmployeeID)
			default:
				fmt.Fprintf(w, "%s: %s\n", res.EmployeeID, res.Outcome)
			}
			return nil
		},
	}
}

func newBadgeCmd(opts *cliOptions) *cobra.Command {
	var (
		output string
		size   int
	)
	cmd := &cobra.Command{
		Use:   "badge <employee-id>",
		Short: "Write an employee's QR badge as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			svc := &service.AttendanceService{Employees: store}
			if err := svc.Refresh(cmd.Context()); err != nil {
				return err
			}
			emp, ok := svc.Lookup(domain.ID(args[0]))
			if !ok {
				return fmt.Errorf("employee %s not found", args[0])
			}
			png, err := badge.PNG(emp, size)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("emp_%s.png", emp.ID)
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default emp_<id>.png)")
	cmd.Flags().IntVar(&size, "size", badge.DefaultSize, "image size in pixels")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the manager routes (needs JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := service.AuthService{Secret: os.Getenv("JWT_SECRET"), TTL: ttl}
			token, exp, err := auth.Issue(subject, domain.UserRole(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is for")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleManager), "admin or manager")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
