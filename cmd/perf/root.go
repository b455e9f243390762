package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/feedstore/cmd/util"
	"github.com/ValentinKolb/feedstore/lib/common"
	"github.com/ValentinKolb/feedstore/lib/feed"
	"github.com/ValentinKolb/feedstore/lib/feed/memstore"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	log = common.GetLogger("cmd")

	// PerfCmd benchmarks an in-memory feed store
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the in-memory feed store",
		Long:    `Runs retrieve, insert, delete and mixed workloads against an in-memory feed store and prints the throughput and latency of each. The configuration can be set via command line flags or environment variables (FEEDSTORE_<flag>, e.g. FEEDSTORE_THREADS=4).`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}

	perfNumThreads  = 10
	perfFeedSize    = 10
	perfSkip        = make([]string, 0)
	perfCSVPath     = ""
	perfShowMetrics = false
)

// benchmark is a single workload of the perf command
type benchmark struct {
	name string
	op   func(ctx context.Context, store feed.IFeedStore, i int) error
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	name   string
	result testing.BenchmarkResult
	timer  gometrics.Timer
}

func init() {
	key := "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Parallelism multiplier for the benchmark goroutines"))
	key = "items"
	PerfCmd.Flags().Int(key, 10, util.WrapString("How many items the inserted feeds contain"))
	key = "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,delete)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Print the store metrics in Prometheus text format after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfFeedSize = viper.GetInt("items")
	perfCSVPath = viper.GetString("csv")
	perfShowMetrics = viper.GetBool("metrics")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", perfNumThreads)
	}
	if perfFeedSize < 0 {
		return fmt.Errorf("items must not be negative, got %d", perfFeedSize)
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	conf := util.GetStoreConfig()
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	fmt.Println("Performance testing tool for the in-memory feed store")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Feed size: %d items\n", perfFeedSize)
	fmt.Println()

	store := memstore.New(conf)
	defer store.Release()

	items := makeFeed(perfFeedSize)
	ctx := context.Background()

	benchmarks := []benchmark{
		{"retrieve", func(ctx context.Context, s feed.IFeedStore, _ int) error {
			_, err := feed.RetrieveContext(ctx, s)
			return err
		}},
		{"insert", func(ctx context.Context, s feed.IFeedStore, _ int) error {
			return feed.InsertContext(ctx, s, items, time.Now())
		}},
		{"delete", func(ctx context.Context, s feed.IFeedStore, _ int) error {
			return feed.DeleteContext(ctx, s)
		}},
		{"mixed", func(ctx context.Context, s feed.IFeedStore, i int) error {
			switch i % 10 {
			case 0:
				return feed.InsertContext(ctx, s, items, time.Now())
			default:
				_, err := feed.RetrieveContext(ctx, s)
				return err
			}
		}},
	}

	log.Infof("starting benchmarks")

	results := make([]perfResult, 0, len(benchmarks))
	for _, bm := range benchmarks {
		if shouldSkip(bm.name) {
			results = append(results, perfResult{name: bm.name, timer: gometrics.NewTimer()})
			printResult(results[len(results)-1])
			continue
		}

		// every workload starts from the same cached feed
		if err := feed.InsertContext(ctx, store, items, time.Now()); err != nil {
			return fmt.Errorf("failed to prepare store: %w", err)
		}

		r := runBenchmark(ctx, store, bm)
		results = append(results, r)
		printResult(r)
	}

	if perfCSVPath != "" {
		if err := writeResultsToCSV(perfCSVPath, results, conf); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", perfCSVPath)
	}

	if perfShowMetrics {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs a workload in parallel and records the latency of every operation
func runBenchmark(ctx context.Context, store feed.IFeedStore, bm benchmark) perfResult {
	timer := gometrics.NewTimer()

	result := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				start := time.Now()
				if err := bm.op(ctx, store, i); err != nil {
					log.Errorf("(%s) - operation failed: %v", bm.name, err)
				}
				timer.UpdateSince(start)
				i++
			}
		})
	})

	return perfResult{name: bm.name, result: result, timer: timer}
}

// makeFeed creates a feed with n items
func makeFeed(n int) []feed.FeedItem {
	items := make([]feed.FeedItem, n)
	for i := range items {
		items[i] = feed.NewFeedItem(fmt.Sprintf("image %d", i), "", fmt.Sprintf("https://feed.example.com/images/%d", i))
	}
	return items
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark in a formatted way
func printResult(r perfResult) {
	if r.result.NsPerOp() == 0 {
		fmt.Printf("%-12sskipped\n", r.name)
		return
	}

	nsPerOp := math.Max(float64(r.result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := r.timer.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-12s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		r.name, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(p[0]), time.Duration(p[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, conf *common.StoreConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Skipped",
		"Threads", "FeedSize", "MaxConcurrentReads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if r.result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(r.result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		p := r.timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			r.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(p[0]).String(),
			time.Duration(p[1]).String(),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfFeedSize),
			strconv.Itoa(conf.MaxConcurrentReads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", r.name, err)
		}
	}

	return nil
}
