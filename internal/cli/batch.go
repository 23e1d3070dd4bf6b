package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ilfeat/internal/adapter/fs"
	"ilfeat/internal/logging"
	"ilfeat/internal/usecase"
)

var (
	batchOutput     string
	batchWorkers    int
	batchGenerators []string
	batchNoProgress bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dataset>...",
	Short: "Compute a feature matrix for datasets",
	Long: `Compute feature rows for every row of the given CSV datasets and write them as
one CSV feature matrix. Arguments may be files, directories or glob patterns.
Datasets need cation and anion columns, or an ionic_liquid column, and may carry
a ratio column.

Rows that fail are kept in the output with their status and error.

Examples:
  ilfeat batch data/train.csv -o features.csv
  ilfeat batch "data/**/*.csv" --workers 8 -g topological`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output CSV (default stdout)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "parallel workers (default from config)")
	batchCmd.Flags().StringSliceVarP(&batchGenerators, "generators", "g", nil, "generators (default from config)")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "disable the progress bar")
}

const tagInvalidInput = "invalid_input"

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	workers := cfg.Batch.Workers
	if batchWorkers > 0 {
		workers = batchWorkers
	}

	walker := fs.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes)
	files, err := walker.Resolve(args)
	if err != nil {
		return err
	}
	var records []fs.Record
	for _, f := range files {
		recs, err := fs.ReadDataset(f.Path)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return fmt.Errorf("no rows found in %d dataset(s)", len(files))
	}
	logger.Info("datasets loaded", logging.Int("files", len(files)), logging.Int("rows", len(records)))

	p, err := openPipeline(ctx, workers)
	if err != nil {
		return err
	}
	defer p.Close()

	sel := selections(batchGenerators)
	results := make([]usecase.BatchResult, len(records))
	var reqs []usecase.Request
	var positions []int
	for i, rec := range records {
		if rec.Err != nil {
			results[i] = usecase.BatchResult{Index: i, Err: rec.Err, Tag: tagInvalidInput}
			appMetrics.BatchRow(tagInvalidInput)
			continue
		}
		reqs = append(reqs, usecase.Request{
			Cation:      rec.Cation,
			Anion:       rec.Anion,
			IonicLiquid: rec.IonicLiquid,
			Mixture:     rec.Mixture,
			Selections:  sel,
		})
		positions = append(positions, i)
	}

	var progress usecase.ProgressFunc
	if cfg.Batch.Progress && !batchNoProgress {
		progress = newProgress(len(reqs))
	}

	for j, r := range p.extractor.ExtractBatch(ctx, reqs, progress) {
		r.Index = positions[j]
		results[r.Index] = r
	}

	var out io.Writer = cmd.OutOrStdout()
	if batchOutput != "" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeMatrix(out, records, results); err != nil {
		return fmt.Errorf("failed to write feature matrix: %w", err)
	}

	printSummary(cmd.ErrOrStderr(), results)
	return ctx.Err()
}

// newProgress returns a progress callback drawing a bar with an ETA on stderr.
func newProgress(total int) usecase.ProgressFunc {
	var mu sync.Mutex
	start := time.Now()
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Extracting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Set(done)

		elapsed := time.Since(start)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Extracting[reset] ETA: %s", formatDuration(eta)))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// writeMatrix writes one CSV line per record. Feature columns follow the
// first successful row; missing values are empty cells.
func writeMatrix(w io.Writer, records []fs.Record, results []usecase.BatchResult) error {
	var columns []string
	for _, r := range results {
		if r.Row != nil {
			columns = r.Row.Columns
			break
		}
	}

	cw := csv.NewWriter(w)
	header := append([]string{"row", "source", "line", "cation", "anion", "status", "error"}, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	line := make([]string, len(header))
	for i, r := range results {
		rec := records[i]
		for k := range line {
			line[k] = ""
		}
		line[0] = strconv.Itoa(i)
		line[1] = rec.Source
		line[2] = strconv.Itoa(rec.Line)
		line[3], line[4] = rec.Cation, rec.Anion
		if r.Err != nil {
			line[5] = r.Tag
			line[6] = r.Err.Error()
		} else {
			line[5] = "ok"
			line[3], line[4] = r.Row.Cation.Canonical, r.Row.Anion.Canonical
			for k, col := range columns {
				if v, ok := r.Row.Value(col); ok && v.Valid {
					line[7+k] = strconv.FormatFloat(v.Float, 'g', -1, 64)
				}
			}
		}
		if line[3] == "" && rec.IonicLiquid != "" {
			line[3] = rec.IonicLiquid
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func printSummary(w io.Writer, results []usecase.BatchResult) {
	tags := map[string]int{}
	ok := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
			continue
		}
		tags[r.Tag]++
	}
	fmt.Fprintf(w, "\nBatch complete:\n")
	fmt.Fprintf(w, "  Rows:      %d\n", len(results))
	fmt.Fprintf(w, "  Succeeded: %d\n", ok)
	if len(tags) == 0 {
		return
	}
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "  Failed:\n")
	for _, t := range names {
		fmt.Fprintf(w, "    %-24s %d\n", t, tags[t])
	}
}
