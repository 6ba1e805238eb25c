package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

type Config struct {
	BaseURL         string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	Countries       string
	WDPAIDs         string
	Geostores       string
	Period          string
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:3600/api/v1/terrai-alerts", "API base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.StringVar(&cfg.Countries, "countries", "BRA,PER,COL,BOL,ECU,VEN,MEX", "ISO codes for /admin routes")
	flag.StringVar(&cfg.WDPAIDs, "wdpa", "", "Protected area ids for /wdpa routes")
	flag.StringVar(&cfg.Geostores, "geostores", "", "Geostore hashes for world routes")
	flag.StringVar(&cfg.Period, "period", "", "Period sent with every request (empty uses the server default)")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 30*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.Parse()
	return cfg
}

// buildPaths expands the configured regions into request paths, most popular first.
// Provinces 1..3 are generated for every country.
func buildPaths(cfg Config) []string {
	var paths []string
	suffix := ""
	if cfg.Period != "" {
		suffix = "?period=" + cfg.Period
	}
	for _, iso := range splitList(cfg.Countries) {
		paths = append(paths, "/admin/"+iso+suffix)
	}
	for _, hash := range splitList(cfg.Geostores) {
		sep := "&"
		if suffix == "" {
			sep = ""
		}
		paths = append(paths, "/?geostore="+hash+strings.Replace(suffix, "?", sep, 1))
	}
	for _, id := range splitList(cfg.WDPAIDs) {
		paths = append(paths, "/wdpa/"+id+suffix)
	}
	for _, iso := range splitList(cfg.Countries) {
		for id1 := 1; id1 <= 3; id1++ {
			paths = append(paths, "/admin/"+iso+"/"+strconv.Itoa(id1)+suffix)
		}
	}
	return paths
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// request result (one sample per request)
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	Path      string
}

type summary struct {
	StartTime     time.Time      `json:"start"`
	EndTime       time.Time      `json:"end"`
	DurationSec   float64        `json:"duration_sec"`
	TotalRequests int64          `json:"total"`
	SuccessCount  int64          `json:"success"`
	ErrorCount    int64          `json:"errors"`
	ByStatus      map[string]int `json:"by_status"`
	ThroughputRPS float64        `json:"throughput_rps"`
	P50Ms         float64        `json:"p50_ms"`
	P95Ms         float64        `json:"p95_ms"`
	P99Ms         float64        `json:"p99_ms"`
	Concurrency   int            `json:"concurrency"`
	ZipfS         float64        `json:"zipf_s"`
	ZipfV         float64        `json:"zipf_v"`
	Paths         int            `json:"paths"`
	Target        string         `json:"target"`
}

type aggregatedResult struct {
	total    int64
	success  int64
	errors   int64
	byStatus map[string]int
	latMs    []float64
}

func main() {
	cfg := loadConfig()
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	paths := buildPaths(cfg)
	if len(paths) == 0 {
		log.Fatalf("no request paths configured")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	imax := uint64(len(paths)) - 1
	seed := time.Now().UnixNano()

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          256,
			MaxIdleConnsPerHost:   128,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Printf("open csv: %v", err)
		return
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "path"})
		agg := aggregatedResult{byStatus: map[string]int{}, latMs: make([]float64, 0, 1<<16)}
		for s := range samplesChan {
			agg.total++
			agg.byStatus[strconv.Itoa(s.Status)]++
			latMs := float64(s.Latency.Microseconds()) / 1000.0
			if s.ErrorMsg == "" {
				agg.success++
				agg.latMs = append(agg.latMs, latMs)
			} else {
				agg.errors++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", latMs),
				strconv.Itoa(s.Status),
				s.ErrorMsg,
				s.Path,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- agg
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) paths=%d",
		base, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(paths))

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipfDist := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				idx := zipfDist.Uint64()
				if idx >= uint64(len(paths)) {
					continue
				}
				s := fire(ctx, httpClient, base, paths[idx])
				select {
				case samplesChan <- s:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	agg := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	runSummary := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		ByStatus:      agg.byStatus,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Paths:         len(paths),
		Target:        base,
	}

	if b, err := json.MarshalIndent(runSummary, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Clean(jsonPath), b, 0o600); err != nil {
			log.Printf("write summary: %v", err)
		}
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		agg.total, agg.success, agg.errors, runSummary.ThroughputRPS, runSummary.P50Ms, runSummary.P95Ms, runSummary.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

// fire issues one request. 4xx answers are expected for unknown regions and count as success.
func fire(ctx context.Context, client *http.Client, base, path string) sample {
	start := time.Now()
	s := sample{Timestamp: start, Path: path}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	resp, err := client.Do(req)
	s.Latency = time.Since(start)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	s.Status = resp.StatusCode
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
