// Command seed loads a fixture YAML file into Postgres for local
// development and integration tests, in the teacher's validate-routes CLI
// shape: a file path argument, a pass/fail summary, and a process exit
// code a script can branch on.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/config"
	destpg "github.com/flowenginer/meta-hub/destination/postgres"
	mappingpg "github.com/flowenginer/meta-hub/mapping/postgres"
	routepg "github.com/flowenginer/meta-hub/route/postgres"
	"github.com/flowenginer/meta-hub/seed"
)

func main() {
	fixturePath := "seed/fixtures/dev.yaml"
	if len(os.Args) > 1 {
		fixturePath = os.Args[1]
	}

	fmt.Printf("Loading fixture: %s\n", fixturePath)

	fixture, err := seed.Load(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED to load fixture: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DBURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED to reach database: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	result, err := seed.Apply(ctx, fixture,
		destpg.New(db), mappingpg.New(db), routepg.New(db),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED to apply fixture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: tenant %s — %d destinations, %d mappings, %d routes\n",
		fixture.TenantID, len(result.DestinationIDs), len(result.MappingIDs), result.RouteCount)
}
