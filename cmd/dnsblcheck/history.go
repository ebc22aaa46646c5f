package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/dnsblcheck/internal/config"
	"github.com/nao1215/dnsblcheck/internal/history"
	"github.com/nao1215/dnsblcheck/internal/model"
	"github.com/nao1215/dnsblcheck/internal/report"
)

// defaultHistoryLimit is the number of entries listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Show checks saved with 'check --save'",
		Long: `History lists the checks stored in the history database.

Checks are only stored when 'dnsblcheck check --save' is used. The history is
never consulted by the check command itself.

Examples:
  # List the most recent checks of every host
  dnsblcheck history

  # List checks of one host
  dnsblcheck history mx.example.com

  # List every host with stored checks
  dnsblcheck history --hosts

  # Show a stored check in full
  dnsblcheck history --id 12

  # Show which providers changed between the two latest checks of a host
  dnsblcheck history --diff mx.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of entries to list (0: all)")
	cmd.Flags().BoolP("hosts", "L", false,
		"List every host with stored checks")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the stored check with this ID")
	cmd.Flags().Bool("latest", false,
		"Show the latest stored check of the host")
	cmd.Flags().Bool("diff", false,
		"Compare the two latest checks of the host")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	host   string
	limit  int
	hosts  bool
	id     int64
	latest bool
	diff   bool
	json   bool
	dbDir  string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	if len(args) > 0 {
		opts.host = strings.TrimSpace(args[0])
	}

	flags := cmd.Flags()
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.hosts, err = flags.GetBool("hosts"); err != nil {
		return opts, err
	}
	if opts.id, err = flags.GetInt64("id"); err != nil {
		return opts, err
	}
	if opts.latest, err = flags.GetBool("latest"); err != nil {
		return opts, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if (opts.latest || opts.diff) && opts.host == "" {
		return opts, configError(errors.New("a host is required with --latest and --diff"))
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// Validate arguments before opening the database, and never create it.
	store, err := history.Open(opts.dbDir, history.ReadOnlyOptions())
	if errors.Is(err, history.ErrNotFound) {
		fmt.Fprintln(out, "No checks have been saved yet.")
		fmt.Fprintln(out, "\nUse 'dnsblcheck check --save <host>' to record a check.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	switch {
	case opts.hosts:
		return listHosts(ctx, out, store)
	case opts.id > 0:
		r, err := store.Get(ctx, opts.id)
		if err != nil {
			return fmt.Errorf("failed to load check %d: %w", opts.id, err)
		}
		return showReport(out, r, opts.json)
	case opts.latest:
		r, err := store.Latest(ctx, opts.host)
		if err != nil {
			return fmt.Errorf("failed to load latest check of %s: %w", opts.host, err)
		}
		return showReport(out, r, opts.json)
	case opts.diff:
		return runDiff(ctx, out, store, opts.host, opts.json)
	default:
		return listEntries(ctx, out, store, opts.host, opts.limit, opts.json)
	}
}

// listHosts prints every host with stored checks.
func listHosts(ctx context.Context, out io.Writer, store *history.Store) error {
	hosts, err := store.Hosts(ctx)
	if err != nil {
		return err
	}

	if len(hosts) == 0 {
		fmt.Fprintln(out, "No checked hosts found in the history database.")
		return nil
	}

	fmt.Fprintf(out, "Checked hosts (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(out, "  • %s\n", host)
	}
	fmt.Fprintln(out, "\nUse 'dnsblcheck history <host>' to see the checks of a host.")
	return nil
}

// listEntries prints a table of stored checks, newest first.
func listEntries(ctx context.Context, out io.Writer, store *history.Store, host string, limit int, asJSON bool) error {
	entries, err := store.List(ctx, host, limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No checks found for %s\n", host)
		} else {
			fmt.Fprintln(out, "No checks found.")
		}
		return nil
	}

	fmt.Fprintf(out, "  %-6s  %-20s  %-30s  %-8s  %s\n", "ID", "Date", "Host", "Verdict", "Providers")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 86))
	for _, e := range entries {
		fmt.Fprintf(out, "  %-6d  %-20s  %-30s  %-8s  %s\n",
			e.ID,
			e.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			e.Host,
			entryVerdict(e),
			formatEntryCounts(e),
		)
	}

	fmt.Fprintln(out, "\nUse 'dnsblcheck history --id <id>' to see a check in full.")
	return nil
}

func entryVerdict(e history.Entry) string {
	switch {
	case e.Error != "" || !e.Evaluated:
		return "error"
	case e.Clean:
		return "clean"
	default:
		return "listed"
	}
}

func formatEntryCounts(e history.Entry) string {
	if e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("%d total, %d listed, %d unknown", e.Providers, e.Listed, e.Unknown)
}

// showReport prints one stored report in full.
func showReport(out io.Writer, r *model.CheckReport, asJSON bool) error {
	var w report.Writer
	if asJSON {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	} else {
		w = report.NewSimpleWriter(out, report.WithShowClean(true))
	}
	_, err := w.Write(r)
	return err
}

// Comparison describes how the provider statuses of a host changed
// between two checks.
type Comparison struct {
	Host string `json:"host"`

	PreviousChecked time.Time `json:"previous_checked"`
	CurrentChecked  time.Time `json:"current_checked"`

	PreviousClean bool `json:"previous_clean"`
	CurrentClean  bool `json:"current_clean"`

	// NewlyListed are providers that fail now but did not before.
	NewlyListed []string `json:"newly_listed"`

	// Delisted are providers that failed before but do not now.
	Delisted []string `json:"delisted"`

	// Added and Removed are providers present on only one of the pages.
	Added   []string `json:"added"`
	Removed []string `json:"removed"`

	UnchangedCount int `json:"unchanged_count"`
}

// Changed reports whether any provider changed state.
func (c *Comparison) Changed() bool {
	return len(c.NewlyListed)+len(c.Delisted)+len(c.Added)+len(c.Removed) > 0
}

func runDiff(ctx context.Context, out io.Writer, store *history.Store, host string, asJSON bool) error {
	entries, err := store.List(ctx, host, 2)
	if err != nil {
		return err
	}
	if len(entries) < 2 {
		fmt.Fprintf(out, "At least two saved checks of %s are needed to compare (found %d).\n", host, len(entries))
		return nil
	}

	current, err := store.Get(ctx, entries[0].ID)
	if err != nil {
		return err
	}
	previous, err := store.Get(ctx, entries[1].ID)
	if err != nil {
		return err
	}

	result := compareReports(previous, current)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeComparison(out, result)
	return nil
}

// compareReports compares the providers of two reports of the same host.
// Providers are matched by name; unnamed providers by image URL.
func compareReports(previous, current *model.CheckReport) *Comparison {
	result := &Comparison{
		Host:            current.Host,
		PreviousChecked: previous.DateChecked,
		CurrentChecked:  current.DateChecked,
		PreviousClean:   previous.Passed(),
		CurrentClean:    current.Passed(),
		NewlyListed:     make([]string, 0),
		Delisted:        make([]string, 0),
		Added:           make([]string, 0),
		Removed:         make([]string, 0),
	}

	prev := providerIndex(previous)
	curr := providerIndex(current)

	for key, p := range curr {
		old, ok := prev[key]
		switch {
		case !ok:
			result.Added = append(result.Added, key)
		case p.Fails() && !old.Fails():
			result.NewlyListed = append(result.NewlyListed, key)
		case !p.Fails() && old.Fails():
			result.Delisted = append(result.Delisted, key)
		default:
			result.UnchangedCount++
		}
	}
	for key := range prev {
		if _, ok := curr[key]; !ok {
			result.Removed = append(result.Removed, key)
		}
	}

	sort.Strings(result.NewlyListed)
	sort.Strings(result.Delisted)
	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	return result
}

func providerIndex(r *model.CheckReport) map[string]model.ProviderRecord {
	index := make(map[string]model.ProviderRecord, len(r.Providers))
	for _, p := range r.Providers {
		key := p.Name
		if key == "" {
			key = p.ImageURL
		}
		index[key] = p
	}
	return index
}

func writeComparison(out io.Writer, c *Comparison) {
	fmt.Fprintf(out, "Comparison for %s\n\n", c.Host)
	fmt.Fprintf(out, "  Previous: %s  %s\n", c.PreviousChecked.Local().Format("2006-01-02 15:04:05"), cleanWord(c.PreviousClean))
	fmt.Fprintf(out, "  Current:  %s  %s\n\n", c.CurrentChecked.Local().Format("2006-01-02 15:04:05"), cleanWord(c.CurrentClean))

	if !c.Changed() {
		fmt.Fprintf(out, "No provider changed (%d unchanged).\n", c.UnchangedCount)
		return
	}

	sections := []struct {
		title string
		names []string
	}{
		{"Newly listed", c.NewlyListed},
		{"Delisted", c.Delisted},
		{"New providers", c.Added},
		{"Removed providers", c.Removed},
	}
	for _, s := range sections {
		if len(s.names) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s (%d):\n", s.title, len(s.names))
		for _, name := range s.names {
			fmt.Fprintf(out, "  • %s\n", name)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Unchanged: %d\n", c.UnchangedCount)
}

func cleanWord(clean bool) string {
	if clean {
		return "clean"
	}
	return "not clean"
}
