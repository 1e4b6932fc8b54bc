package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"sttmgen/internal/generate"
	"sttmgen/internal/metrics"
	"sttmgen/internal/metrics/datadog"

	// register all ledger backends; config selects which one runs.
	_ "sttmgen/internal/report/all"
)

// main is the entry point for the sttmgen binary. It loads the generator
// options, reads the mapping, emits the SQL artifact set, and validates every
// generated statement.
func main() {
	var (
		mappingPath       string
		format            string
		encoding          string
		cfgPath           string
		outDir            string
		checkConfig       bool
		failOnError       bool
		metricsBackendFlg string
		ledgerKind        string
		ledgerDSN         string
	)

	flag.StringVar(&mappingPath, "mapping", "", "source-to-target mapping file (CSV or JSON)")
	flag.StringVar(&format, "format", "", "mapping format: csv or json (default: by file extension)")
	flag.StringVar(&encoding, "encoding", "", "mapping encoding: utf-8, windows-1252 or latin-1 (default: utf-8 with BOM detection)")
	flag.StringVar(&cfgPath, "config", "", "generator options JSON path (optional)")
	flag.StringVar(&outDir, "out-dir", "out", "directory for generated artifacts")
	flag.BoolVar(&checkConfig, "check-config", false, "validate the options file and exit")
	flag.BoolVar(&failOnError, "fail-on-error", false, "exit nonzero when any group error or syntax diagnostic occurs")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.StringVar(&ledgerKind, "ledger", "", "run ledger backend (sqlite, postgres, mssql; empty disables)")
	flag.StringVar(&ledgerDSN, "ledger-dsn", "", "run ledger DSN")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	opts, err := loadOptions(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := generate.ValidateOptions(opts)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == generate.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if checkConfig {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if mappingPath == "" {
		fatalf("missing -mapping")
	}

	// Decide metrics backend: flag → env → default (disabled).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "sttmgen",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	run := runParams{
		MappingPath: mappingPath,
		Format:      format,
		Encoding:    encoding,
		OutDir:      outDir,
		Options:     opts,
		LedgerKind:  ledgerKind,
		LedgerDSN:   ledgerDSN,
		Verbose:     *verbose,
	}
	summary, err := execute(ctx, run)
	if err != nil {
		log.Fatalf("%v", err)
	}

	metrics.ObserveHistogram(metrics.MetricRunSeconds, time.Since(start).Seconds(), nil)

	if *verbose {
		log.Printf("completed in %s: %d statements, %d group errors, %d diagnostics",
			time.Since(start).Truncate(time.Millisecond),
			summary.Statements, summary.GroupErrors, summary.Diagnostics)
	}
	if failOnError && (summary.GroupErrors > 0 || summary.Diagnostics > 0) {
		os.Exit(2)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
