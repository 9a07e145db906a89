package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sabanasdb/internal/concurrent"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/parser"
	"github.com/sabanasdb/internal/storage"
	"github.com/sabanasdb/internal/version"
)

func main() {
	// Command line flags
	var (
		dbURL       = flag.String("db", os.Getenv("DATABASE_URL"), "Database URL (postgres://, mysql:// or a SQLite path)")
		path        = flag.String("path", "", "Path to a sabana spreadsheet or directory (required)")
		recursive   = flag.Bool("recursive", false, "Scan directories recursively")
		carrier     = flag.String("carrier", "", "Force carrier for all files (telcel, movistar, att, altan)")
		workers     = flag.Int("workers", 4, "Number of concurrent workers")
		verbose     = flag.Bool("verbose", false, "Verbose output")
		quiet       = flag.Bool("quiet", false, "Only print errors and the final summary")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Sabanas Importer %s\n", version.GetFullVersionInfo())
		os.Exit(0)
	}

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Error: -path is required\n")
		flag.Usage()
		os.Exit(1)
	}
	if *dbURL == "" {
		fmt.Fprintf(os.Stderr, "Error: -db or DATABASE_URL is required\n")
		flag.Usage()
		os.Exit(1)
	}

	forced, err := parseCarrier(*carrier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logging.Initialize(&logging.Config{Level: level, Console: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Sabanas CDR Importer")
	fmt.Println("====================")
	fmt.Printf("Path: %s\n", *path)
	fmt.Printf("Workers: %d\n", *workers)
	if forced != "" {
		fmt.Printf("Carrier: %s\n", forced)
	}
	fmt.Println()

	// Initialize the record store
	db, err := database.New(*dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if v, err := db.GetVersion(); err == nil {
		fmt.Printf("Database: %s %s\n", db.Dialect().Name, v)
	}

	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	repo, err := storage.New(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	// Find spreadsheets
	files, err := findSheetFiles(*path, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find spreadsheets: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No spreadsheets found in: %s\n", *path)
		return
	}

	fmt.Printf("Found %d spreadsheets to import\n", len(files))
	if *verbose {
		for i, file := range files {
			fmt.Printf("  %d: %s\n", i+1, filepath.Base(file))
		}
	}
	fmt.Println()

	// Import
	start := time.Now()
	processor := concurrent.New(repo, *workers, forced, *verbose, *quiet)
	summary, perr := processor.ProcessFiles(context.Background(), files)

	duration := time.Since(start)
	fmt.Println()
	fmt.Printf("Files: %d imported, %d failed\n", summary.Succeeded, summary.Failed)
	fmt.Printf("Rows: %d read, %d kept, %d duplicates dropped\n",
		summary.RowsRead, summary.RowsKept, summary.Duplicates)
	if summary.Replaced > 0 {
		fmt.Printf("Replaced %d rows from earlier revisions\n", summary.Replaced)
	}
	fmt.Printf("Elapsed: %v", duration.Round(time.Millisecond))
	if summary.RowsKept > 0 && duration > 0 {
		fmt.Printf(" (%.0f rows/sec)", float64(summary.RowsKept)/duration.Seconds())
	}
	fmt.Println()

	if perr != nil {
		os.Exit(1)
	}
}

func parseCarrier(s string) (parser.Carrier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "telcel":
		return parser.CarrierTelcel, nil
	case "movistar", "telefonica":
		return parser.CarrierMovistar, nil
	case "att", "at&t":
		return parser.CarrierATT, nil
	case "altan":
		return parser.CarrierAltan, nil
	}
	return "", fmt.Errorf("unknown carrier %q", s)
}

// findSheetFiles finds all spreadsheets in the specified path
func findSheetFiles(path string, recursive bool) ([]string, error) {
	var files []string

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s", path)
	}

	if !info.IsDir() {
		if isSheetFile(path) {
			files = append(files, path)
		}
		return files, nil
	}

	walkFunc := func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && filePath != path {
				return filepath.SkipDir
			}
			return nil
		}

		if isSheetFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	}

	if err := filepath.Walk(path, walkFunc); err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	return files, nil
}

// isSheetFile checks whether a file looks like a carrier spreadsheet.
func isSheetFile(filePath string) bool {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".txt", ".xls", ".xlsx", ".xlsm":
		return true
	}
	return false
}
