package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"transcoding_service/internal/transcoding/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type clientFunc func() *apiClient

func newSubmitCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a source URL for transcoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if resp.Job != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: #%s\n", resp.Message, resp.Job.ID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newShowCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      #%s\n", job.ID)
			fmt.Fprintf(out, "URL:      %s\n", job.Data.URL)
			fmt.Fprintf(out, "State:    %s\n", job.State)
			fmt.Fprintf(out, "Progress: %.2f%%\n", job.Progress)
			fmt.Fprintf(out, "Created:  %s\n", humanize.Time(job.CreatedAt))
			if job.FinishedAt != nil {
				fmt.Fprintf(out, "Finished: %s\n", humanize.Time(*job.FinishedAt))
			}
			if job.ReturnValue != "" {
				fmt.Fprintf(out, "Output:   %s\n", job.ReturnValue)
			}
			if job.FailedReason != "" {
				fmt.Fprintf(out, "Reason:   %s\n", job.FailedReason)
			}
			return nil
		},
	}
}

func newListCommand(client clientFunc) *cobra.Command {
	var status string
	var start, end int64
	var asc bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if status != "" {
				query.Set("status", status)
			}
			query.Set("start", strconv.FormatInt(start, 10))
			query.Set("end", strconv.FormatInt(end, 10))
			if asc {
				query.Set("asc", "true")
			}
			jobs, err := client().List(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					string(job.State),
					fmt.Sprintf("%.1f%%", job.Progress),
					humanize.Time(job.CreatedAt),
					job.Data.URL,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "State", "Progress", "Created", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Comma separated states (queued,active,completed,failed,cancelled)")
	cmd.Flags().Int64Var(&start, "start", 0, "First index per state")
	cmd.Flags().Int64Var(&end, "end", 19, "Last index per state, -1 for all")
	cmd.Flags().BoolVar(&asc, "asc", false, "Oldest first")
	return cmd
}

func newLogsCommand(client clientFunc) *cobra.Command {
	var start, end int64
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the log lines of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("start", strconv.FormatInt(start, 10))
			query.Set("end", strconv.FormatInt(end, 10))
			logs, err := client().Logs(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			for _, line := range logs.Logs {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d lines\n", len(logs.Logs), logs.Count)
			return nil
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "First line")
	cmd.Flags().Int64Var(&end, "end", -1, "Last line, -1 for all")
	return cmd
}

func newCancelCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newDeleteCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newCleanCommand(client clientFunc) *cobra.Command {
	var status string
	var grace time.Duration
	var limit int64

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove finished jobs older than the grace period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(status) == "" {
				return fmt.Errorf("--status is required")
			}
			query := url.Values{}
			query.Set("status", status)
			query.Set("grace", strconv.FormatInt(grace.Milliseconds(), 10))
			if limit > 0 {
				query.Set("limit", strconv.FormatInt(limit, 10))
			}
			resp, err := client().Clean(cmd.Context(), query)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			for _, id := range resp.DeletedIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Comma separated states to clean")
	cmd.Flags().DurationVar(&grace, "grace", time.Second, "Only jobs finished before now-grace")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Maximum number of jobs, 0 for no limit")
	return cmd
}

func newCountsCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the number of jobs per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := client().Counts(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(domain.AllStates))
			for _, state := range domain.AllStates {
				rows = append(rows, []string{string(state), humanize.Comma(counts[string(state)])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newHealthCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show redis health of the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics, err := client().Metrics(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(metrics))
			for k := range metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				v := metrics[k]
				if n, err := strconv.ParseUint(v, 10, 64); err == nil && strings.Contains(k, "memory") {
					v = humanize.IBytes(n)
				}
				rows = append(rows, []string{k, v})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, nil))
			return nil
		},
	}
}
