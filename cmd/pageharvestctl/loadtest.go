package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pageharvest/pageharvest/models"
)

// loadtest flags, mirroring benchmark script's CLI surface
// minus the API-key flag (this service has no authenticated API).
var (
	loadtestAPIURL string
	loadtestRuns   int
	loadtestOutput string
	loadtestMode   string
)

// testURLs is the fixed set of site types benchmark script
// exercised, kept as-is since it still covers a representative spread of
// static/dynamic/complex pages.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// runResult is one POST /page attempt's outcome.
type runResult struct {
	Run         int    `json:"run"`
	TotalMs     int64  `json:"total_ms"`
	BodyLength  int    `json:"body_length"`
	HasTitle    bool   `json:"has_title"`
	ReadTimeMin int    `json:"read_time_min"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs    float64 `json:"total_ms"`
	BodyLength float64 `json:"body_length"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type loadtestReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	Mode       string      `json:"mode"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

// loadtestCmd creates the "loadtest" subcommand.
func loadtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running pageharvest server with repeated scrape requests",
		Long:  "loadtest exercises POST /api/v1/page against a fixed set of test URLs, runs per URL, and reports latency/success statistics as a table plus a JSON report file.",
		RunE:  runLoadtest,
	}

	cmd.Flags().StringVar(&loadtestAPIURL, "api-url", "http://localhost:8080", "pageharvest API base URL")
	cmd.Flags().IntVar(&loadtestRuns, "runs", 3, "number of runs per URL for averaging")
	cmd.Flags().StringVar(&loadtestOutput, "output", "loadtest-results.json", "JSON output file path")
	cmd.Flags().StringVar(&loadtestMode, "mode", "", "scrape mode to request (static, browser; empty = server default)")

	return cmd
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== pageharvest Load Test ===")
	fmt.Printf("API URL:   %s\n", loadtestAPIURL)
	fmt.Printf("Runs/URL:  %d\n", loadtestRuns)
	fmt.Printf("Output:    %s\n", loadtestOutput)
	fmt.Println()

	if err := checkHealth(loadtestAPIURL); err != nil {
		return fmt.Errorf("cannot reach API at %s: %w (is pageharvestd running?)", loadtestAPIURL, err)
	}

	report := loadtestReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     loadtestAPIURL,
		Mode:       loadtestMode,
		RunsPerURL: loadtestRuns,
	}

	for _, t := range testURLs {
		fmt.Printf("Scraping [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= loadtestRuns; i++ {
			fmt.Printf("  Run %d/%d ... ", i, loadtestRuns)
			rr := scrapeOnce(t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d bytes\n", rr.TotalMs, rr.BodyLength)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(loadtestOutput, report); err != nil {
		return fmt.Errorf("write JSON output: %w", err)
	}
	fmt.Printf("\nDetailed results written to %s\n", loadtestOutput)
	return nil
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func scrapeOnce(url string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := models.ScrapeRequest{URL: url}
	if loadtestMode != "" {
		reqBody.Mode = models.Mode(loadtestMode)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, loadtestAPIURL+"/api/v1/page", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 90 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rr.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return rr
	}

	var result models.ScrapeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = true
	rr.TotalMs = elapsed.Milliseconds()
	rr.BodyLength = len(result.Body)
	rr.HasTitle = result.Title != ""
	rr.ReadTimeMin = result.Meta.ReadTimeMin

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.BodyLength += float64(r.BodyLength)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.BodyLength /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tAvg Body Bytes\n")
	fmt.Fprintf(w, "───\t───────────\t──────────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%d\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			int(r.Averages.BodyLength),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 70))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report loadtestReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
