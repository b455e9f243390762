package perf

import (
	"context"
	"encoding/csv"
	"github.com/ValentinKolb/feedstore/lib/common"
	"github.com/ValentinKolb/feedstore/lib/feed"
	"github.com/ValentinKolb/feedstore/lib/feed/memstore"
	gometrics "github.com/rcrowley/go-metrics"
	"os"
	"path/filepath"
	"testing"
)

func TestShouldSkip(t *testing.T) {
	perfSkip = []string{"insert", " delete"}
	t.Cleanup(func() { perfSkip = nil })

	if !shouldSkip("insert") || !shouldSkip("delete") {
		t.Errorf("Expected insert and delete to be skipped")
	}
	if shouldSkip("retrieve") {
		t.Errorf("Did not expect retrieve to be skipped")
	}
}

func TestMakeFeed(t *testing.T) {
	items := makeFeed(5)
	if len(items) != 5 {
		t.Fatalf("Expected 5 items, got %d", len(items))
	}
	if items[0].ID == items[1].ID {
		t.Errorf("Expected unique item ids")
	}
}

func TestRunBenchmarkAndWriteCSV(t *testing.T) {
	perfNumThreads = 1
	conf := common.DefaultStoreConfig()
	store := memstore.New(conf)
	defer store.Release()

	bm := benchmark{"retrieve", func(ctx context.Context, s feed.IFeedStore, _ int) error {
		_, err := feed.RetrieveContext(ctx, s)
		return err
	}}
	r := runBenchmark(context.Background(), store, bm)
	if r.timer.Count() == 0 {
		t.Errorf("Expected the timer to record operations")
	}

	results := []perfResult{r, {name: "insert", timer: gometrics.NewTimer()}}
	path := filepath.Join(t.TempDir(), "results.csv")
	if err := writeResultsToCSV(path, results, conf); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open CSV: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d rows", len(rows))
	}
	if rows[1][0] != "retrieve" || rows[1][6] != "false" {
		t.Errorf("Unexpected retrieve row: %v", rows[1])
	}
	if rows[2][0] != "insert" || rows[2][6] != "true" {
		t.Errorf("Unexpected skipped row: %v", rows[2])
	}
}
