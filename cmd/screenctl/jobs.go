package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/usecase"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage pipeline jobs",
}

var (
	listStatus string
	listOffset int
	listLimit  int

	enqApplication string
	enqRequisition string
	enqPriority    int
	enqDelay       time.Duration

	clearAll bool
	clearYes bool
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *model.JobStatus
		if listStatus != "" {
			st, err := model.ParseJobStatus(listStatus)
			if err != nil {
				return err
			}
			status = &st
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		jobs, err := e.queue.List(cmd.Context(), status, listOffset, listLimit)
		if err != nil {
			return err
		}
		printJobs(cmd.OutOrStdout(), jobs)
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count jobs per status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		counts, err := e.queue.Stats(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		total := 0
		for _, st := range model.AllJobStatuses {
			fmt.Fprintf(w, "%-10s %d\n", st, counts[st])
			total += counts[st]
		}
		fmt.Fprintf(w, "%-10s %d\n", "total", total)
		return nil
	},
}

var jobsEnqueueCmd = &cobra.Command{
	Use:   "enqueue <job-type>",
	Short: "Enqueue a job for an application or requisition",
	Long: "Enqueue a pipeline job by hand. Application-level stages need --application,\n" +
		"sync needs --requisition. Valid types: " + jobTypeList() + ".",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jt, err := model.ParseJobType(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		in := usecase.EnqueueInput{
			JobType:       jt,
			ApplicationID: enqApplication,
			RequisitionID: enqRequisition,
			Priority:      enqPriority,
			Source:        "manual",
		}
		if enqDelay > 0 {
			in.ScheduledFor = time.Now().UTC().Add(enqDelay)
		}
		job, err := e.queue.Enqueue(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s %s (scheduled for %s)\n", job.JobType, job.ID, job.ScheduledFor.Format(time.RFC3339))
		return nil
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>...",
	Short: "Re-enqueue dead or failed jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var errs []error
		for _, id := range args {
			job, err := e.queue.Retry(cmd.Context(), id)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s %s\n", job.JobType, job.ID)
		}
		return errors.Join(errs...)
	},
}

var jobsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete completed jobs, or every job with --all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearAll && !clearYes {
			return errors.New("--all deletes pending and running jobs too; pass --yes to confirm")
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var n int64
		if clearAll {
			n, err = e.queue.ClearAll(cmd.Context())
		} else {
			n, err = e.queue.ClearCompleted(cmd.Context())
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d jobs\n", n)
		return nil
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, running, completed, failed, dead)")
	jobsListCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")
	jobsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows to print")

	jobsEnqueueCmd.Flags().StringVar(&enqApplication, "application", "", "application id")
	jobsEnqueueCmd.Flags().StringVar(&enqRequisition, "requisition", "", "requisition id (sync only)")
	jobsEnqueueCmd.Flags().IntVar(&enqPriority, "priority", 0, "higher runs first")
	jobsEnqueueCmd.Flags().DurationVar(&enqDelay, "delay", 0, "schedule the job this far in the future")

	jobsClearCmd.Flags().BoolVar(&clearAll, "all", false, "delete every job regardless of status")
	jobsClearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm --all")

	jobsCmd.AddCommand(jobsListCmd, jobsStatsCmd, jobsEnqueueCmd, jobsRetryCmd, jobsClearCmd)
	rootCmd.AddCommand(jobsCmd)
}

func printJobs(w io.Writer, jobs []*model.Job) {
	fmt.Fprintf(w, "%-26s %-16s %-10s %-8s %-36s %s\n", "ID", "TYPE", "STATUS", "TRIES", "OWNER", "LAST ERROR")
	fmt.Fprintln(w, strings.Repeat("─", 120))
	for _, j := range jobs {
		owner := j.AppID()
		if owner == "" && j.RequisitionID != nil {
			owner = "req:" + *j.RequisitionID
		}
		fmt.Fprintf(w, "%-26s %-16s %-10s %-8s %-36s %s\n",
			j.ID, j.JobType, j.Status, fmt.Sprintf("%d/%d", j.Attempts, j.MaxAttempts), owner, oneLine(j.LastError, 60))
	}
	fmt.Fprintf(w, "\n%d jobs\n", len(jobs))
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

func jobTypeList() string {
	names := make([]string, 0, len(model.AllJobTypes))
	for _, t := range model.AllJobTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
