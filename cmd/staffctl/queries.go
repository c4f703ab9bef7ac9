package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/supportdesk/backend/internal/storage/models"
)

var (
	resolveText string
	resolveFlag string
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveText, "resolution", "", "Resolution text (required)")
	resolveCmd.Flags().StringVar(&resolveFlag, "flag", "", "Category flag (required)")
	_ = resolveCmd.MarkFlagRequired("resolution")
	_ = resolveCmd.MarkFlagRequired("flag")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List escalated questions awaiting staff",
	Long: `List every escalated question, oldest first.

Examples:
  staffctl pending
  staffctl pending --json`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single query record",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Record a resolution for an escalated question",
	Long: `Record a resolution and category flag. Resolving an already resolved
question overwrites the previous resolution.

Examples:
  staffctl resolve 12 --resolution "Shipped yesterday" --flag shipping`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runPending(cmd *cobra.Command, args []string) error {
	svc, err := initServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.store.ListPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list pending queries: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No pending questions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tQUESTION")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Email, truncate(r.Question, 60))
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	svc, err := initServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	record, err := svc.store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	return printRecord(cmd.OutOrStdout(), record)
}

func runResolve(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	svc, err := initServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	record, err := svc.workflow.Resolve(cmd.Context(), id, resolveText, resolveFlag)
	if err != nil {
		return err
	}

	return printRecord(cmd.OutOrStdout(), record)
}

func printRecord(out io.Writer, r *models.QueryRecord) error {
	if outputJSON {
		return writeJSON(out, r)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", r.ID)
	fmt.Fprintf(w, "State:\t%s\n", r.State)
	fmt.Fprintf(w, "Email:\t%s\n", r.Email)
	fmt.Fprintf(w, "Question:\t%s\n", r.Question)
	if r.Resolution != nil {
		fmt.Fprintf(w, "Resolution:\t%s\n", r.Resolution.Text)
		fmt.Fprintf(w, "Flag:\t%s\n", r.Resolution.Flag)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid query id %q", s)
	}
	return id, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
