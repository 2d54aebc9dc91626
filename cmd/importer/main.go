// Command importer bulk-loads person records from CSV files into the
// PostgreSQL corpus. Each CSV row is id,given_name,family_name; rows
// that fail to parse are skipped. Existing ids are overwritten.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/searchworks/persondex/internal/store"
	"github.com/searchworks/persondex/pkg/config"
	"github.com/searchworks/persondex/pkg/logger"
	"github.com/searchworks/persondex/pkg/postgres"
)

const batchSize = 1000

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dataDir := flag.String("data", "ids", "directory containing CSV files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()
	personStore := store.NewPersonStore(pgClient)

	ctx := context.Background()
	if err := personStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	files, err := csvFiles(*dataDir)
	if err != nil {
		slog.Error("failed to list CSV files", "dir", *dataDir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("no CSV files found", "dir", *dataDir)
		os.Exit(1)
	}

	start := time.Now()
	var imported, skipped int64
	for _, path := range files {
		slog.Info("importing file", "file", filepath.Base(path))
		n, bad, err := importFile(ctx, personStore, path)
		imported += n
		skipped += bad
		if err != nil {
			slog.Error("import failed", "file", filepath.Base(path), "error", err)
			os.Exit(1)
		}
	}

	slog.Info("import complete",
		"files", len(files),
		"imported", imported,
		"skipped", skipped,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func importFile(ctx context.Context, st *store.PersonStore, path string) (imported, skipped int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	batch := make([]store.Person, 0, batchSize)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("reading %s: %w", path, err)
		}
		person, ok := parseRecord(record)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, person)

		if len(batch) >= batchSize {
			if err := st.InsertBatch(ctx, batch); err != nil {
				return imported, skipped, err
			}
			imported += int64(len(batch))
			slog.Info("progress", "imported", imported)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := st.InsertBatch(ctx, batch); err != nil {
			return imported, skipped, err
		}
		imported += int64(len(batch))
	}
	return imported, skipped, nil
}

func parseRecord(record []string) (store.Person, bool) {
	if len(record) < 3 {
		return store.Person{}, false
	}
	id, err := strconv.ParseInt(cleanField(record[0]), 10, 64)
	if err != nil {
		return store.Person{}, false
	}
	return store.Person{
		ID:         id,
		GivenName:  cleanField(record[1]),
		FamilyName: cleanField(record[2]),
	}, true
}

func cleanField(value string) string {
	return strings.Trim(strings.TrimSpace(value), `"`)
}
