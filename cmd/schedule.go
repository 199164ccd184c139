package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/repopulse/repopulse/internal/config"
	"github.com/repopulse/repopulse/internal/dependency"
	"github.com/repopulse/repopulse/internal/sched"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled workflow runs",
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleServeCmd)
}

func schedStorePath() string {
	return filepath.Join(config.DataDir(), "sched", "jobs.json")
}

// ---- list ------------------------------------------------------------------

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled workflow runs",
	RunE: func(_ *cobra.Command, _ []string) error {
		svc := sched.NewService(schedStorePath())
		jobs := svc.ListJobs()
		if len(jobs) == 0 {
			fmt.Println("No scheduled runs.")
			return nil
		}
		fmt.Printf("%-10s %-20s %-25s %-20s\n", "ID", "Name", "Schedule", "Next Run")
		for _, j := range jobs {
			nextRun := ""
			if j.State.NextRunAtMs != nil {
				nextRun = time.UnixMilli(*j.State.NextRunAtMs).Format("2006-01-02 15:04")
			}
			fmt.Printf("%-10s %-20s %-25s %-20s\n", j.ID, j.Name, formatSchedule(j.Schedule), nextRun)
		}
		return nil
	},
}

func formatSchedule(s sched.Schedule) string {
	switch s.Kind {
	case "every":
		if s.EveryMs != nil {
			return fmt.Sprintf("every %s", time.Duration(*s.EveryMs)*time.Millisecond)
		}
	case "cron":
		if s.Expr != nil {
			return "cron " + *s.Expr
		}
	case "at":
		if s.AtMs != nil {
			return "at " + time.UnixMilli(*s.AtMs).Format("2006-01-02 15:04")
		}
	}
	return s.Kind
}

// ---- add -------------------------------------------------------------------

var (
	scheduleAddName  string
	scheduleAddEvery int
	scheduleAddCron  string
	scheduleAddTZ    string
	scheduleAddAt    string
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled workflow run",
	RunE: func(_ *cobra.Command, _ []string) error {
		if scheduleAddTZ != "" && scheduleAddCron == "" {
			return fmt.Errorf("--tz can only be used with --cron")
		}

		var kind string
		var everyMs int64
		var atMs int64

		switch {
		case scheduleAddEvery > 0:
			kind = "every"
			everyMs = int64(scheduleAddEvery) * 1000
		case scheduleAddCron != "":
			kind = "cron"
		case scheduleAddAt != "":
			kind = "at"
			dt, err := time.ParseInLocation("2006-01-02T15:04:05", scheduleAddAt, time.Local)
			if err != nil {
				dt, err = time.Parse(time.RFC3339, scheduleAddAt)
				if err != nil {
					return fmt.Errorf("invalid --at value %q: %w", scheduleAddAt, err)
				}
			}
			atMs = dt.UnixMilli()
		default:
			return fmt.Errorf("must specify --every, --cron, or --at")
		}

		svc := sched.NewService(schedStorePath())
		id, err := svc.AddJob(scheduleAddName, kind, everyMs, scheduleAddCron, scheduleAddTZ, atMs, kind == "at")
		if err != nil {
			return err
		}
		fmt.Printf("✓ Added schedule '%s' (%s)\n", scheduleAddName, id)
		fmt.Println("Run 'repopulse schedule serve' to start executing schedules.")
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().StringVarP(&scheduleAddName, "name", "n", "", "Schedule name (required)")
	scheduleAddCmd.Flags().IntVarP(&scheduleAddEvery, "every", "e", 0, "Run every N seconds")
	scheduleAddCmd.Flags().StringVarP(&scheduleAddCron, "cron", "c", "", "Cron expression (e.g. '0 9 * * *')")
	scheduleAddCmd.Flags().StringVar(&scheduleAddTZ, "tz", "", "IANA timezone for --cron")
	scheduleAddCmd.Flags().StringVar(&scheduleAddAt, "at", "", "Run once at ISO datetime")

	_ = scheduleAddCmd.MarkFlagRequired("name")
}

// ---- remove ----------------------------------------------------------------

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled workflow run",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		svc := sched.NewService(schedStorePath())
		if svc.RemoveJob(args[0]) {
			fmt.Printf("✓ Removed schedule %s\n", args[0])
		} else {
			fmt.Printf("Schedule %s not found\n", args[0])
		}
		return nil
	},
}

// ---- serve -----------------------------------------------------------------

var scheduleServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler until interrupted",
	RunE:  runScheduleServe,
}

func runScheduleServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}

	svc := container.Scheduler()
	svc.SetOnJob(func(jobCtx context.Context, job sched.Job) error {
		runCtx, cancel := context.WithTimeout(jobCtx, 15*time.Minute)
		defer cancel()
		return runWorkflowOnce(runCtx, container)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Start(gctx) })

	fmt.Printf("%s Scheduler running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
