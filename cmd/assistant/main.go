package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/services"
	"github.com/charmbracelet/lipgloss"
)

const (
	urlEnv   = "DESIGN_ASSISTANT_URL"
	tokenEnv = "DESIGN_ASSISTANT_TOKEN"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "ask":
		askCmd(os.Args[2:])
	case "sync":
		syncCmd(os.Args[2:])
	case "stats":
		statsCmd(os.Args[2:])
	case "health":
		healthCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "search":
		searchCmd(os.Args[2:])
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `assistant

Usage:
  assistant ask [flags] [question]
  assistant sync [flags] [source...]
  assistant stats [flags]
  assistant health [flags]
  assistant export [flags] node-name
  assistant search [flags] query

Commands:
  ask      Ask the design assistant. Without a question, starts an interactive conversation.
  sync     Sync data sources into the design knowledge base (default: figma and slides).
  stats    Print knowledge base statistics.
  health   Check the backend and its services.
  export   Export a Figma asset as SVG.
  search   Search the design system documents, or Figma files with -figma.

Environment:
  %s    Backend base URL (default: http://localhost:8000)
  %s  Bearer token sent with every request

`, urlEnv, tokenEnv)
}

type clientFlags struct {
	url     *string
	token   *string
	timeout *time.Duration
	verbose *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	url := os.Getenv(urlEnv)
	if url == "" {
		url = "http://localhost:8000"
	}
	return clientFlags{
		url:     fs.String("backend", url, "Backend base URL"),
		token:   fs.String("token", os.Getenv(tokenEnv), "Bearer token"),
		timeout: fs.Duration("timeout", 2*time.Minute, "Request timeout"),
		verbose: fs.Bool("v", false, "Log requests to stderr"),
	}
}

func (c clientFlags) logger() *slog.Logger {
	if !*c.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (c clientFlags) backend() services.Backend {
	creds := services.NewCredentials(strings.TrimSpace(*c.token))
	return services.NewBackend(strings.TrimRight(*c.url, "/"), *c.timeout, creds, c.logger())
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
