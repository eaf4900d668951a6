// Command analyze runs read-only analyses over an imported voter table
// and writes a markdown report.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/civicworks/voterbase/internal/report"
)

func main() {
	var (
		table     = flag.String("table", "", "imported voter table to analyze")
		threshold = flag.Int("threshold", report.DefaultThreshold, "minimum voters at an address to flag")
		output    = flag.String("output", "", "path for the markdown report (default: stdout)")
		quality   = flag.Bool("quality", false, "run the data quality report instead")
	)
	flag.Parse()

	if *table == "" {
		flag.Usage()
		os.Exit(2)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create %s: %v", *output, err)
		}
		defer f.Close()
		out = f
	}

	analyzer := report.NewAnalyzer(db)
	ctx := context.Background()

	if *quality {
		rep, err := analyzer.Quality(ctx, *table)
		if err != nil {
			log.Fatalf("quality report: %v", err)
		}
		if err := report.WriteQualityMarkdown(out, rep); err != nil {
			log.Fatalf("write report: %v", err)
		}
		return
	}

	analysis, err := analyzer.DuplicateAddresses(ctx, *table, *threshold)
	if err != nil {
		log.Fatalf("duplicate address analysis: %v", err)
	}
	if err := report.WriteMarkdown(out, analysis); err != nil {
		log.Fatalf("write report: %v", err)
	}

	if *output != "" {
		fmt.Printf("Analysis complete. Report saved to %s\n", *output)
		fmt.Printf("Total unique addresses analyzed: %d\n", analysis.TotalAddresses)
		fmt.Printf("Addresses with multiple voters: %d\n", analysis.AddressesWithDuplicates)
		fmt.Printf("Total voters at duplicate addresses: %d\n", analysis.VotersAtDuplicates)
	}
}
