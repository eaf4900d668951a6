// Command import loads one voter extract into PostgreSQL using a
// previously saved state profile.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/civicworks/voterbase/internal/config"
	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/distlock"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/sink"
	"github.com/civicworks/voterbase/internal/source"
)

func main() {
	var (
		state      = flag.String("state", "", "two-letter state code")
		file       = flag.String("file", "", "path to the extract to import")
		table      = flag.String("table", "", "destination table (default: generated)")
		configPath = flag.String("config", "config.yaml", "path to config file")
		force      = flag.Bool("force", false, "drop and recreate the destination table")
		limit      = flag.Int("limit", 0, "import at most this many rows (0 = all)")
	)
	flag.Parse()

	if *state == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.RedactPIIEnabled())

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}

	store := profile.NewFileStore(cfg.Profiles.Dir)
	prof, err := store.Load(*state)
	if errors.Is(err, profile.ErrNotFound) {
		log.Fatalf("state %s is not onboarded; run the onboard command first", *state)
	}
	if err != nil {
		log.Fatalf("load profile: %v", err)
	}

	batch, err := source.ReadFile(*file, prof.FileFormat, *limit)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	fmt.Printf("Read %d rows from %s\n", batch.Len(), *file)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	dest := *table
	if dest == "" {
		dest = schema.TableName(*state, *file, time.Now())
	}

	engine := importer.New(sink.NewPostgres(db))
	engine.SetRunLog(sink.NewRunLog(db))
	engine.SetLockFactory(func(table string) distlock.Lock {
		return distlock.ForTable(nil, db, table, 2*time.Hour)
	})

	res, err := engine.Import(context.Background(), prof, batch, importer.Options{
		Table:      dest,
		StateCode:  *state,
		SourceFile: *file,
		Force:      *force,
		ChunkSize:  cfg.Import.ChunkSize,
	})
	if errors.Is(err, importer.ErrDuplicateVoterIDs) {
		fmt.Printf("\nImport aborted: %d rows share a voter identifier. Nothing was written.\n",
			res.Duplicates.Count)
		for _, id := range res.Duplicates.Sample {
			fmt.Printf("  %s\n", id)
		}
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	fmt.Printf("\nImport %s: %s\n", res.State, dest)
	fmt.Printf("  Rows processed: %d\n", res.ProcessedRows)
	fmt.Printf("  Rows inserted:  %d\n", res.InsertedRows)
	fmt.Printf("  Duration:       %s\n", res.Duration.Round(time.Millisecond))
	if n := len(res.Violations); n > 0 {
		fmt.Printf("  Skipped %d row(s) already present in %s:\n", n, dest)
		for _, v := range res.ViolationSample() {
			fmt.Printf("    %s (%s %s)\n", v.VoterID, v.FirstName, v.LastName)
		}
		if n > len(res.ViolationSample()) {
			fmt.Printf("    ... and %d more\n", n-len(res.ViolationSample()))
		}
	}
}
