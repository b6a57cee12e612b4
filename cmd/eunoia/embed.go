package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Try3D/Eunoia/ai"
	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/store"
)

const defaultEmbedConcurrency = 5

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Merge scraped project JSON files and attach a materials embedding to each record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if in == "" || out == "" {
			return errors.New("--in and --out are required")
		}

		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		aiConfig := ai.NewConfigFromProfile(instanceProfile)
		provider, err := embedding.NewProvider(&aiConfig.Embedding)
		if err != nil {
			return errors.Wrap(err, "failed to create embedding provider")
		}

		records, err := readRecordFiles(in)
		if err != nil {
			return err
		}
		embedded, err := embedRecords(ctx, provider, records, concurrency)
		if err != nil {
			return err
		}
		if err := writeRecords(out, records); err != nil {
			return err
		}
		fmt.Printf("Wrote %d records (%d embedded with %s) to %s\n", len(records), embedded, provider.Model(), out)
		return nil
	},
}

func init() {
	embedCmd.Flags().String("in", "", "directory of scraped *.json files")
	embedCmd.Flags().String("out", "", "combined output file")
	embedCmd.Flags().Int("concurrency", defaultEmbedConcurrency, "number of concurrent embedding requests")
}

// readRecordFiles merges every *.json file in dir. A file holds either an
// array of records or a single record; unreadable files are skipped.
func readRecordFiles(dir string) ([]map[string]any, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	sort.Strings(paths)

	records := []map[string]any{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			slog.Warn("skipping invalid JSON file", "path", path, "error", err)
			continue
		}
		switch v := doc.(type) {
		case []any:
			for i, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					slog.Warn("skipping non-object entry", "path", path, "index", i)
					continue
				}
				records = append(records, obj)
			}
		case map[string]any:
			records = append(records, v)
		default:
			slog.Warn("skipping file that is neither an array nor an object", "path", path)
		}
	}
	slog.Info("records merged", "files", len(paths), "records", len(records))
	return records, nil
}

// recordText returns the text embedded for a raw record, honoring the same
// alternate keys as the corpus loader.
func recordText(obj map[string]any) string {
	data, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	var r store.ProjectRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return ""
	}
	return r.MaterialsText()
}

// embedRecords sets the "embedding" key of every record that lists materials
// and returns how many were embedded. The first failure cancels the rest.
func embedRecords(ctx context.Context, enc embedding.Encoder, records []map[string]any, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var embedded atomic.Int64
	for i, record := range records {
		text := recordText(record)
		if text == "" {
			slog.Debug("record has no materials, not embedded", "index", i)
			continue
		}
		g.Go(func() error {
			vector, err := enc.Embed(ctx, text)
			if err != nil {
				return errors.Wrapf(err, "failed to embed record %d", i)
			}
			record["embedding"] = vector
			if n := embedded.Add(1); n%100 == 0 {
				slog.Info("embedding progress", "embedded", n, "total", len(records))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(embedded.Load()), err
	}
	return int(embedded.Load()), nil
}

func writeRecords(path string, records []map[string]any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode records")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
