package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
)

var auditFlags struct {
	since  string
	limit  int
	format string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long:  `Query and maintain the gateway's audit trail of resolved requests.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records",
	Long: `List audit records, newest first.

Examples:
  # Records from the last 24 hours
  ganymede audit list --since 24h

  # The 10 most recent records as JSON
  ganymede audit list --limit 10 --format json`,
	RunE: listAuditRecords,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records past the retention window",
	RunE:  pruneAuditRecords,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditListCmd.Flags().StringVar(&auditFlags.since, "since", "", "only records newer than this duration (e.g. 24h)")
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "maximum records to return")
	auditListCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
}

func openAuditStore() (audit.Store, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if !cfg.Audit.Enabled {
		return nil, fmt.Errorf("audit is not enabled in %s", cfgFile)
	}
	store, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
	if err != nil {
		return nil, cli.NewCommandError("audit", err)
	}
	return store, nil
}

func listAuditRecords(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var since time.Time
	if auditFlags.since != "" {
		d, err := time.ParseDuration(auditFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		since = time.Now().Add(-d)
	}

	ctx := context.Background()
	records, err := store.List(ctx, since, auditFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}

	if cli.OutputFormat(auditFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Println("No audit records found.")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-8s  %-9s  conn=%s req=%s tokens=%d chunks=%d dur=%s\n",
			rec.CreatedAt.Format(time.RFC3339),
			rec.Method,
			rec.Status,
			rec.ConnectionID,
			rec.RequestID,
			rec.TotalTokens,
			rec.Chunks,
			rec.Duration.Round(time.Millisecond),
		)
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}

func pruneAuditRecords(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	if !cfg.Audit.Enabled {
		return fmt.Errorf("audit is not enabled in %s", cfgFile)
	}

	store, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer store.Close()

	if cfg.Audit.RetentionDays <= 0 {
		fmt.Println("Retention is disabled (retention_days <= 0); nothing to prune.")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.Audit.RetentionDays)
	deleted, err := store.PruneBefore(context.Background(), cutoff)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Printf("✓ Pruned %d records older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
