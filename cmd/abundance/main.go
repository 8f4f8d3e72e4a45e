package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"abundance/internal/config"
	"abundance/internal/feed"
	"abundance/internal/pipeline"
	"abundance/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Require("FEED_SERVICE_URL", cfg.FeedServiceURL))
	must(cfg.Require("DB_PATH", cfg.DBPath))

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := "run"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "feed:sync":
		result := doSync(db, cfg)
		fmt.Printf("feed sync done fetched=%d normalized=%d skipped=%d unmapped=%d\n",
			result.Fetched, result.Normalized, result.Skipped, result.Unmapped)
	case "build:v1":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		offline := fs.Bool("offline", false, "build from the local cache without fetching")
		_ = fs.Parse(os.Args[2:])
		if !*offline {
			doSync(db, cfg)
		}
		builder := pipeline.NewBuildService(db, cfg)
		res, err := builder.BuildV1()
		must(err)
		report(res)
	case "build:v2":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		offline := fs.Bool("offline", false, "build from the local cache without fetching")
		_ = fs.Parse(os.Args[2:])
		if !*offline {
			doSync(db, cfg)
		}
		builder := pipeline.NewBuildService(db, cfg)
		res, err := builder.BuildV2()
		must(err)
		report(res)
	case "run":
		sync := doSync(db, cfg)
		fmt.Printf("fetched features: %d (skipped=%d unmapped=%d)\n", sync.Fetched, sync.Skipped, sync.Unmapped)
		builder := pipeline.NewBuildService(db, cfg)
		v1, err := builder.BuildV1()
		must(err)
		report(v1)
		v2, err := builder.BuildV2()
		must(err)
		report(v2)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		version := fs.String("version", "v1", "v1|v2")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		builder := pipeline.NewBuildService(db, cfg)
		var res pipeline.BuildResult
		switch *version {
		case "v1":
			res, err = builder.BuildV1()
		case "v2":
			res, err = builder.BuildV2()
		default:
			err = fmt.Errorf("unsupported version: %s", *version)
		}
		must(err)
		must(pipeline.ExportProjectsToXLSX(res.Records, *out))
		fmt.Printf("exported %d projects to %s\n", len(res.Records), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func doSync(db *storage.DB, cfg config.Config) feed.SyncResult {
	svc := feed.NewSyncService(db, cfg)
	result, err := svc.Sync(context.Background())
	must(err)
	return result
}

func report(res pipeline.BuildResult) {
	fmt.Printf("%s: projects=%d (zero-unit dropped=%d)\n", res.Version, res.Stats.Projects, res.Stats.ZeroUnitDropped)
	for _, path := range res.Artifacts {
		fmt.Printf("wrote: %s\n", path)
	}
}

func usage() {
	fmt.Println("usage: abundance <command>")
	fmt.Println("commands:")
	fmt.Println("  run                      sync the permit feed, build and emit v1 + v2 artifacts (default)")
	fmt.Println("  feed:sync                fetch the permit feed into the local cache")
	fmt.Println("  build:v1 [--offline]     build and emit v1 artifacts")
	fmt.Println("  build:v2 [--offline]     build and emit v2 artifacts (permits + supplemental)")
	fmt.Println("  export:xlsx --version=v1|v2 --out=./out/developments.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
