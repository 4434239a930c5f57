package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
)

// scenarioKey — имя, под которым копятся результаты сценариев целиком.
const scenarioKey = "scenario"

// latency — перцентили задержки в миллисекундах (nearest-rank).
type latency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

type callStats struct {
	Calls     int64            `json:"calls"`
	OK        int64            `json:"ok"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latency          `json:"latency_ms"`
}

// Failed — число неуспешных вызовов.
func (s callStats) Failed() int64 { return s.Calls - s.OK }

type report struct {
	StartedAt      time.Time            `json:"started_at"`
	ElapsedSeconds float64              `json:"elapsed_seconds"`
	Throughput     float64              `json:"scenarios_per_second"`
	Scenarios      callStats            `json:"scenarios"`
	Methods        map[string]callStats `json:"methods"`
}

type tally struct {
	byCode    map[codes.Code]int64
	durations []time.Duration
}

// recorder копит результаты вызовов: точные задержки для отчёта и
// prometheus-метрики для выгрузки в textfile.
type recorder struct {
	mu      sync.Mutex
	tallies map[string]*tally

	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	seconds  *prometheus.HistogramVec
}

func newRecorder() *recorder {
	r := &recorder{
		tallies:  make(map[string]*tally),
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watermate_loadtest_calls_total",
			Help: "Calls made by the load test, by method and gRPC code.",
		}, []string{"method", "code"}),
		seconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watermate_loadtest_call_duration_seconds",
			Help:    "Call latency observed by the load test.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method"}),
	}
	r.registry.MustRegister(r.calls, r.seconds)
	return r
}

func (r *recorder) observe(name string, d time.Duration, code codes.Code) {
	r.calls.WithLabelValues(name, code.String()).Inc()
	r.seconds.WithLabelValues(name).Observe(d.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tallies[name]
	if !ok {
		t = &tally{byCode: make(map[codes.Code]int64)}
		r.tallies[name] = t
	}
	t.byCode[code]++
	t.durations = append(t.durations, d)
}

func (r *recorder) summarize(startedAt time.Time, elapsed time.Duration) report {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := report{
		StartedAt:      startedAt.UTC(),
		ElapsedSeconds: elapsed.Seconds(),
		Methods:        make(map[string]callStats, len(r.tallies)),
	}
	for name, t := range r.tallies {
		stats := t.stats()
		if name == scenarioKey {
			out.Scenarios = stats
			continue
		}
		out.Methods[name] = stats
	}
	if elapsed > 0 {
		out.Throughput = float64(out.Scenarios.Calls) / elapsed.Seconds()
	}
	return out
}

// writeTextfile сохраняет метрики в формате node_exporter textfile collector.
func (r *recorder) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func (t *tally) stats() callStats {
	s := callStats{
		Calls:     int64(len(t.durations)),
		OK:        t.byCode[codes.OK],
		Codes:     make(map[string]int64, len(t.byCode)),
		LatencyMs: summarizeLatency(t.durations),
	}
	for code, n := range t.byCode {
		s.Codes[code.String()] = n
	}
	if s.Calls > 0 {
		s.ErrorRate = float64(s.Failed()) / float64(s.Calls)
	}
	return s
}

func summarizeLatency(durations []time.Duration) latency {
	if len(durations) == 0 {
		return latency{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return latency{
		Min:  ms(sorted[0]),
		Mean: ms(total / time.Duration(len(sorted))),
		P50:  ms(nearestRank(sorted, 50)),
		P90:  ms(nearestRank(sorted, 90)),
		P99:  ms(nearestRank(sorted, 99)),
		Max:  ms(sorted[len(sorted)-1]),
	}
}

// nearestRank возвращает p-й перцентиль отсортированной выборки.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// outputPath проверяет, что отчёт пишется в файл внутри текущего каталога.
func outputPath(path string) (string, error) {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return "", errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return "", fmt.Errorf("output path must be inside current directory: %s", path)
	}
	return clean, nil
}

func writeJSONReport(path string, result report) error {
	clean, err := outputPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, append(data, '\n'), 0o600)
}

func printReport(w io.Writer, result report, cfg config) {
	sc := result.Scenarios
	_, _ = fmt.Fprintf(w, "watermate load test: mode=%s %s\n", cfg.mode, runTarget(cfg))
	_, _ = fmt.Fprintf(w, "scenarios=%d ok=%d failed=%d error_rate=%.4f elapsed=%.2fs throughput=%.2f/s\n",
		sc.Calls, sc.OK, sc.Failed(), sc.ErrorRate, result.ElapsedSeconds, result.Throughput)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METHOD\tCALLS\tFAILED\tP50 MS\tP90 MS\tP99 MS\tMAX MS")
	row := func(name string, s callStats) {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			name, s.Calls, s.Failed(), s.LatencyMs.P50, s.LatencyMs.P90, s.LatencyMs.P99, s.LatencyMs.Max)
	}
	row(scenarioKey, sc)
	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		row(name, result.Methods[name])
	}
	_ = tw.Flush()
}
