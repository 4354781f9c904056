package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/MegaGrindStone/design-assistant/internal/admin"
	"github.com/MegaGrindStone/design-assistant/internal/models"
)

func syncCmd(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	client := addClientFlags(fs)
	_ = fs.Parse(args)

	sources := fs.Args()
	if len(sources) == 0 {
		sources = admin.DefaultSources
	}

	backend := client.backend()
	tracker := admin.NewTracker(backend, sources, nil, nil, client.logger())

	fmt.Println(dimStyle.Render(fmt.Sprintf("Syncing %v...", sources)))
	tracker.RunAll(context.Background())

	failed := false
	for _, src := range tracker.Sources() {
		job, _ := tracker.Job(src)
		if job.LastResult == nil {
			continue
		}
		printSyncResult(os.Stdout, src, *job.LastResult)
		if !job.LastResult.Succeeded() {
			failed = true
		}
	}
	if stats := tracker.Stats(); stats != nil {
		fmt.Println(dimStyle.Render(fmt.Sprintf("%d documents in %s", stats.TotalDocuments, stats.CollectionName)))
	}
	if failed {
		os.Exit(1)
	}
}

func printSyncResult(w io.Writer, source string, res models.SyncResult) {
	if !res.Succeeded() {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s: sync failed: %s", source, res.Message)))
		return
	}

	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("%s: synced %d items, %d documents in total",
		source, res.Count(), res.TotalDocuments)))

	kinds := make([]string, 0, len(res.Synced))
	for kind := range res.Synced {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		fmt.Fprintln(w, "  "+titleStyle.Render(kind))
		for _, item := range res.Synced[kind] {
			line := "    - " + item.Name
			if summary := item.Summary(); summary != "" {
				line += " " + dimStyle.Render(summary)
			}
			fmt.Fprintln(w, line)
		}
	}
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	client := addClientFlags(fs)
	_ = fs.Parse(args)

	stats, err := client.backend().Stats(context.Background())
	if err != nil {
		fail("failed to get stats: %v", err)
	}
	fmt.Printf("%s %d\n%s %s\n",
		titleStyle.Render("Documents:"), stats.TotalDocuments,
		titleStyle.Render("Collection:"), stats.CollectionName)
}

func healthCmd(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	client := addClientFlags(fs)
	asJSON := fs.Bool("json", false, "Print the raw health payload")
	_ = fs.Parse(args)

	health, err := client.backend().Health(context.Background())
	if err != nil {
		fail("backend unreachable: %v", err)
	}

	if *asJSON {
		b, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			fail("failed to encode result: %v", err)
		}
		fmt.Println(string(b))
		return
	}

	fmt.Printf("%s %s (version %s)\n", titleStyle.Render("Status:"), health.Status, health.Version)
	names := make([]string, 0, len(health.Services))
	for name := range health.Services {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		state := errorStyle.Render("unavailable")
		if health.Services[name] {
			state = successStyle.Render("configured")
		}
		fmt.Printf("  %-14s %s\n", name, state)
	}
}
