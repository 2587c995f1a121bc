// Shared helpers for clickpoints commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fabrylab/clickpoints/internal/paths"
	"github.com/fabrylab/clickpoints/pkg/datafile"
)

// openProject resolves the project file from arg or the configured database
// and opens it. Only ModeWrite creates a missing file. The caller must Close
// the returned file.
func (a *app) openProject(arg string, mode datafile.OpenMode) (*datafile.DataFile, error) {
	path, err := paths.ResolveDatabase(arg, a.cfg.GetString(cfgKeyDatabase), a.configDir)
	if err != nil {
		return nil, err
	}
	if mode != datafile.ModeWrite {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}
	ttl, err := a.cacheTTL()
	if err != nil {
		return nil, err
	}
	df, err := datafile.Open(path, mode, datafile.Options{Logger: a.log, CacheTTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.log.Debug("opened project file", "path", df.Path(), "read_only", df.ReadOnly())
	return df, nil
}

// firstArg returns args[0] or the empty string.
func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339Nano)
}

func formatOptionalInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func formatOptionalID(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
