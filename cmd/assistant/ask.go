package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MegaGrindStone/design-assistant/internal/chat"
	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/MegaGrindStone/design-assistant/internal/services"
	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
)

func askCmd(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	client := addClientFlags(fs)
	stream := fs.Bool("stream", false, "Print the reply while it is generated")
	saveDir := fs.String("save", "", "Save exported assets of replies to this directory")
	style := fs.String("style", "dark", "Markdown style: dark|light|notty|ascii")
	width := fs.Int("width", 100, "Word wrap width of rendered replies")
	_ = fs.Parse(args)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(*style),
		glamour.WithWordWrap(*width),
	)
	if err != nil {
		fail("failed to create renderer: %v", err)
	}

	backend := client.backend()
	logger := client.logger()

	p := newPrinter(os.Stdout, renderer, *saveDir)
	transcript := chat.NewTranscript(p.handle)
	dispatcher := chat.NewDispatcher(transcript, backend, logger)

	var downloader *chat.Downloader
	if *saveDir != "" {
		saver, err := services.NewFileSaver(*saveDir)
		if err != nil {
			fail("failed to prepare download directory: %v", err)
		}
		downloader = chat.NewDownloader(transcript, backend, saver, nil, logger)
	}

	ask := func(question string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		send := dispatcher.Send
		if *stream {
			send = dispatcher.SendStreaming
		}
		if !send(ctx, question) {
			return
		}

		if downloader == nil {
			return
		}
		last := transcript.Len() - 1
		if msg, ok := transcript.At(last); ok && msg.ExportData != nil {
			downloader.Download(ctx, last)
		}
	}

	if question := strings.TrimSpace(strings.Join(fs.Args(), " ")); question != "" {
		ask(question)
		return
	}

	fmt.Println(titleStyle.Render("Design Assistant") + dimStyle.Render("  (empty line or \"exit\" to quit)"))
	repl(ask)
}

// repl reads questions with line editing until the user quits. The input history is kept in the user's
// config directory between sessions.
func repl(ask func(question string)) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if dir, err := os.UserConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "designassistant", "ask_history")
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile != "" && os.MkdirAll(filepath.Dir(historyFile), 0o755) == nil {
			if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}
		line.Close()
	}()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("failed to read input: %v", err)))
			}
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" || input == "exit" || input == "quit" {
			return
		}
		line.AppendHistory(input)
		ask(input)
	}
}

// printer writes conversation events to a terminal. Streamed replies are written as they grow; complete
// replies are rendered as markdown.
type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	saveDir  string

	printed map[int]int
	ended   map[int]bool
}

func newPrinter(out io.Writer, renderer *glamour.TermRenderer, saveDir string) *printer {
	return &printer{
		out:      out,
		renderer: renderer,
		saveDir:  saveDir,
		printed:  make(map[int]int),
		ended:    make(map[int]bool),
	}
}

func (p *printer) handle(ev chat.Event) {
	switch ev.Kind {
	case chat.EventAlert:
		fmt.Fprintln(p.out, errorStyle.Render(ev.Alert))
	case chat.EventMessage:
		p.message(ev.Index, ev.Message)
	}
}

func (p *printer) message(index int, msg models.Message) {
	if msg.Role != models.RoleAssistant {
		return
	}

	if p.ended[index] {
		if msg.DownloadState == models.DownloadComplete && msg.ExportData != nil {
			path := filepath.Join(p.saveDir, msg.ExportData.Filename())
			fmt.Fprintln(p.out, successStyle.Render("Saved "+path))
		}
		return
	}

	switch msg.StreamingState {
	case models.StreamingStateLoading:
		return
	case models.StreamingStateStreaming:
		fmt.Fprint(p.out, msg.Content[p.printed[index]:])
		p.printed[index] = len(msg.Content)
		return
	}

	p.ended[index] = true
	streamed := p.printed[index] > 0
	if streamed {
		fmt.Fprintln(p.out)
	}

	switch {
	case msg.IsError:
		fmt.Fprintln(p.out, errorStyle.Render(msg.Content))
		return
	case !streamed:
		out, err := p.renderer.Render(msg.Content)
		if err != nil {
			out = msg.Content + "\n"
		}
		fmt.Fprint(p.out, out)
	}

	p.artifacts(msg)
}

func (p *printer) artifacts(msg models.Message) {
	if len(msg.Sources) > 0 {
		fmt.Fprintln(p.out, titleStyle.Render("Sources"))
		for _, src := range msg.Sources {
			line := "  - " + src.Name
			if src.Type != "" {
				line += " (" + src.Type + ")"
			}
			if src.URL != "" {
				line += " " + dimStyle.Render(src.URL)
			}
			fmt.Fprintln(p.out, line)
		}
	}
	for _, img := range msg.ExampleImages {
		fmt.Fprintln(p.out, dimStyle.Render("  image: "+img))
	}
	if msg.ExportData != nil {
		hint := msg.ExportData.Label()
		if p.saveDir == "" {
			hint += " (use -save to download)"
		}
		fmt.Fprintln(p.out, dimStyle.Render(hint))
	}
}
