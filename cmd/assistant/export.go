package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MegaGrindStone/design-assistant/internal/chat"
	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/MegaGrindStone/design-assistant/internal/services"
)

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	client := addClientFlags(fs)
	nodeID := fs.String("node-id", "", "Figma node ID")
	fileKey := fs.String("file-key", "", "Figma file key")
	color := fs.String("color", "", "Color variant, e.g. primary, white, black")
	dir := fs.String("dir", ".", "Directory to save the asset to")
	_ = fs.Parse(args)

	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		fs.Usage()
		os.Exit(2)
	}

	saver, err := services.NewFileSaver(*dir)
	if err != nil {
		fail("failed to prepare directory: %v", err)
	}

	logger := client.logger()
	downloader := chat.NewDownloader(chat.NewTranscript(nil), client.backend(), saver, nil, logger)
	path, err := downloader.ExportStandalone(context.Background(), models.ExportData{
		NodeName: name,
		NodeID:   *nodeID,
		FileKey:  *fileKey,
		Color:    *color,
	})
	if err != nil {
		logger.Error("Export failed", slog.String("err", err.Error()))
		fail(chat.DownloadFailedText)
	}
	fmt.Println(successStyle.Render("Saved " + path))
}

func searchCmd(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	client := addClientFlags(fs)
	topK := fs.Int("top", 5, "Number of documents to return")
	figma := fs.Bool("figma", false, "Search Figma file names instead of documents")
	format := fs.String("format", "text", "Output format: json|text")
	_ = fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		os.Exit(2)
	}

	backend := client.backend()
	ctx := context.Background()

	var (
		result any
		err    error
	)
	if *figma {
		result, err = backend.SearchFigmaFiles(ctx, query)
	} else {
		result, err = backend.Search(ctx, query, *topK)
	}
	if err != nil {
		fail("search failed: %v", err)
	}

	switch strings.TrimSpace(strings.ToLower(*format)) {
	case "json":
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fail("failed to encode result: %v", err)
		}
		fmt.Println(string(b))
	case "", "text":
		switch r := result.(type) {
		case models.FigmaSearch:
			for i, f := range r.Results {
				fmt.Printf("%d. %s %s\n   %s\n", i+1, titleStyle.Render(f.Name), dimStyle.Render(f.Project), f.URL)
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("%d files", r.Count)))
		case models.SearchResult:
			for i, doc := range r.Documents {
				header := fmt.Sprintf("%d.", i+1)
				if i < len(r.Distances) {
					header += dimStyle.Render(fmt.Sprintf(" distance %.3f", r.Distances[i]))
				}
				if i < len(r.Metadatas) {
					if src, ok := r.Metadatas[i]["source"].(string); ok {
						header += " " + titleStyle.Render(src)
					}
				}
				fmt.Println(header)
				fmt.Printf("   %s\n\n", strings.ReplaceAll(strings.TrimSpace(doc), "\n", "\n   "))
			}
		}
	default:
		fail("invalid -format: %q (want json|text)", *format)
	}
}
