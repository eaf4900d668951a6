// Command onboard learns a state's extract layout from a sample file and
// saves the resulting profile.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/civicworks/voterbase/internal/config"
	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/source"
)

func main() {
	var (
		state      = flag.String("state", "", "two-letter state code")
		file       = flag.String("file", "", "path to a sample extract")
		configPath = flag.String("config", "config.yaml", "path to config file")
		force      = flag.Bool("force", false, "overwrite an existing profile")
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

	store := profile.NewFileStore(cfg.Profiles.Dir)
	if store.Exists(*state) && !*force {
		log.Fatalf("profile for %s already exists; re-run with -force to overwrite", *state)
	}

	format, columns, err := source.Sniff(*file)
	if err != nil {
		log.Fatalf("inspect %s: %v", *file, err)
	}
	fmt.Printf("Detected format: type=%s delimiter=%q encoding=%s header=%v\n",
		format.Type, format.Delimiter, format.Encoding, format.HasHeader)
	fmt.Printf("Columns: %d\n", len(columns))

	prof := profile.FromHeader(*state, format, columns)

	batch, err := source.ReadFile(*file, format, cfg.Import.SampleRows)
	if err != nil {
		log.Fatalf("read sample: %v", err)
	}
	rows, canonical := importer.Preview(prof, batch, cfg.Import.SampleRows)
	validation := schema.Validate(canonical, rows)

	fmt.Println("\nColumn mapping:")
	mapped := make([]string, 0, len(prof.ColumnMappings))
	for raw := range prof.ColumnMappings {
		mapped = append(mapped, raw)
	}
	sort.Strings(mapped)
	for _, raw := range mapped {
		fmt.Printf("  %-30s -> %s\n", raw, prof.ColumnMappings[raw])
	}

	rule := prof.AddressRule()
	fmt.Printf("\nAddress rule: %d field(s), separator %q\n", len(rule.Fields), rule.Separator)
	for _, f := range rule.Fields {
		fmt.Printf("  %s\n", f)
	}

	for _, e := range validation.Errors {
		fmt.Printf("ERROR: %s\n", e)
	}
	for _, warn := range validation.Warnings {
		fmt.Printf("WARNING: %s\n", warn)
	}

	if err := store.Save(prof); err != nil {
		log.Fatalf("save profile: %v", err)
	}
	fmt.Printf("\nProfile saved for %s (%d of %d columns mapped)\n",
		prof.StateCode, len(prof.ColumnMappings), len(columns))
	if !validation.Valid {
		os.Exit(1)
	}
}
