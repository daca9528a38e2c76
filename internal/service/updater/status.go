package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/repository/history"
)

// StatusOptions are inputs accepted by the status entry point.
type StatusOptions struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Output receives the report.
	Output io.Writer
}

// Status prints the last recorded cycle of the configured service.
func Status(ctx context.Context, opts *StatusOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	rec, err := history.NewFileRepository(cfg.HistoryFile).Load(ctx)
	if errors.Is(err, history.ErrNotFound) {
		_, err = fmt.Fprintf(opts.Output, "%s: no update cycle recorded yet\n", cfg.Service.Name)
		return err
	}

	if err != nil {
		return err
	}

	return printRecord(opts.Output, rec)
}

func printRecord(out io.Writer, rec *history.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	rows := [][2]string{
		{"Service", rec.Service},
		{"Installed", rec.InstalledVersion},
		{"Last outcome", string(rec.Outcome)},
		{"Stage", string(rec.Stage)},
		{"From", rec.OldVersion},
		{"To", rec.NewVersion},
		{"Error", rec.Error},
		{"Exit code", fmt.Sprint(rec.ExitCode)},
		{"Finished", formatTime(rec.FinishedAt)},
		{"Duration", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()},
		{"Run ID", rec.RunID},
	}

	for _, row := range rows {
		if row[1] == "" {
			continue
		}

		if _, err := fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}

	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Local().Format(time.RFC3339)
}
