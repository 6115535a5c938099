package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDirectoryUnreadable is returned when a batch run cannot list its directory.
var ErrDirectoryUnreadable = errors.New("log directory is unreadable")

// ListLogFiles returns the names of the regular files in dir whose extension
// matches ext (case-insensitive), sorted by name.
func ListLogFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryUnreadable, dir, err)
	}

	want := Options{Extension: ext}.normalizedExtension()
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		if strings.ToLower(filepath.Ext(entry.Name())) == want {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// ValidateDirectory validates every matching log file in dir and returns the
// results keyed by file name. An empty directory yields an empty map.
//
// Files are validated concurrently, at most Options.Workers at a time. Each
// file gets its own result slot, so workers share nothing. ctx is checked
// before each file starts; a file already running always completes. When ctx is
// cancelled the context error is returned without results.
func (v *FileValidator) ValidateDirectory(ctx context.Context, dir string) (map[string]*Result, error) {
	names, err := ListLogFiles(dir, v.opts.Extension)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]*Result, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(v.opts.Workers, 1))

	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			results[i] = v.ValidateFile(filepath.Join(dir, name))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string]*Result, len(names))

	invalid := 0

	for i, name := range names {
		byName[name] = results[i]
		if !results[i].Valid {
			invalid++
		}
	}

	v.logger.Info("Validated log directory",
		slog.String("directory", dir),
		slog.Int("files", len(names)),
		slog.Int("invalid", invalid),
		slog.Duration("duration", time.Since(start)))

	return byName, nil
}
