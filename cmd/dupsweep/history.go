package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupsweep/internal/database"
	"dupsweep/internal/exitcodes"
)

type historyOptions struct {
	dbPath     string
	recent     int
	stats      bool
	days       int
	rule       string
	action     string
	path       string
	largest    int
	prune      int
	jsonOutput bool
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	o := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the action history database",
		Example: `  dupsweep history --recent 10            # 10 most recent actions
  dupsweep history --stats --days 7       # statistics for the last week
  dupsweep history --rule by_directory    # actions attributed to a rule
  dupsweep history --action DELETE        # only deletions
  dupsweep history --path '/srv/media/%'  # actions below /srv/media
  dupsweep history --largest 10           # 10 largest reclaimed files
  dupsweep history --prune 90             # drop records older than 90 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.dbPath == "" && g.configPath != "" {
				cfg, err := g.loadConfig(nil)
				if err != nil {
					return err
				}
				o.dbPath = cfg.DatabasePath
			}
			if o.dbPath == "" {
				return withCode(exitcodes.InvalidConfig, fmt.Errorf("no database: pass --db or a config with database_path"))
			}

			db, err := database.NewActionDB(o.dbPath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", o.dbPath, err)
			}
			defer db.Close()

			return o.run(cmd, db)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.dbPath, "db", "", "Path to the action database (defaults to database_path of --config)")
	f.IntVar(&o.recent, "recent", 0, "Show N most recent actions")
	f.BoolVar(&o.stats, "stats", false, "Show action statistics")
	f.IntVar(&o.days, "days", 30, "Number of days for statistics")
	f.StringVar(&o.rule, "rule", "", "Filter by cleanup rule")
	f.StringVar(&o.action, "action", "", "Filter by action (DELETE, MOVE, DRY_RUN, SKIP, ERROR)")
	f.StringVar(&o.path, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	f.IntVar(&o.largest, "largest", 0, "Show N largest reclaimed files")
	f.IntVar(&o.prune, "prune", 0, "Delete records older than N days and vacuum")
	f.BoolVar(&o.jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func (o *historyOptions) run(cmd *cobra.Command, db *database.ActionDB) error {
	out := cmd.OutOrStdout()
	var (
		records []database.ActionRecord
		title   string
		err     error
	)
	switch {
	case o.prune > 0:
		n, err := db.DeleteOldRecords(o.prune)
		if err != nil {
			return err
		}
		if err := db.Vacuum(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d records older than %d days\n", n, o.prune)
		return nil
	case o.stats:
		return o.showStats(out, db)
	case o.recent > 0:
		records, err = db.GetRecentActions(o.recent)
	case o.rule != "":
		title = "Actions by rule: " + o.rule
		records, err = db.GetActionsByRule(o.rule)
	case o.action != "":
		title = "Records with action: " + o.action
		records, err = db.GetActionsByAction(o.action)
	case o.path != "":
		title = "Actions matching path pattern: " + o.path
		records, err = db.GetActionsByPath(o.path)
	case o.largest > 0:
		title = fmt.Sprintf("Largest %d reclaimed files:", o.largest)
		records, err = db.GetLargestActions(o.largest)
	default:
		_ = cmd.Usage()
		return withCode(exitcodes.InvalidConfig, fmt.Errorf("no query selected"))
	}
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}

	if o.jsonOutput {
		return writeJSON(out, records)
	}
	if title != "" {
		fmt.Fprintf(out, "%s\n\n", title)
	}
	printRecords(out, records)
	return nil
}

func (o *historyOptions) showStats(out io.Writer, db *database.ActionDB) error {
	stats, err := db.GetActionStats(o.days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}
	if o.jsonOutput {
		return writeJSON(out, stats)
	}

	fmt.Fprintf(out, "Action Statistics (Last %d days)\n", o.days)
	fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Deleted:          %d\n", stats.TotalDeleted)
	fmt.Fprintf(out, "Moved:            %d\n", stats.TotalMoved)
	fmt.Fprintf(out, "Dry run:          %d\n", stats.TotalDryRun)
	fmt.Fprintf(out, "Skipped:          %d\n", stats.TotalSkipped)
	fmt.Fprintf(out, "Errors:           %d\n", stats.TotalErrors)
	fmt.Fprintf(out, "Space Reclaimed:  %s\n\n", humanize.IBytes(uint64(stats.SpaceReclaimed)))

	printCounts(out, "By Rule:", stats.ByRule)
	printCounts(out, "By Action:", stats.ByAction)
	return nil
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(out, title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, counts[k])
	}
	fmt.Fprintln(out)
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printRecords(out io.Writer, records []database.ActionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tRule\tSize\tPath\tKeeper")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----\t----\t----\t------")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Action, r.Rule,
			humanize.IBytes(uint64(r.Size)), r.Path, r.Keeper)
	}
	_ = w.Flush()
}
