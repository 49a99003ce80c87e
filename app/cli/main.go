package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"auticare/app/bot"
	"auticare/app/cli/tui"
	"auticare/app/server"
	"auticare/config"
	"auticare/metrics"
	"auticare/types"

	tea "github.com/charmbracelet/bubbletea"
)

type doctorChat struct{ d *bot.Doctor }

func (c doctorChat) Ask(ctx context.Context, message string, _ []types.Message) (string, error) {
	r, err := c.d.Chat(ctx, message)
	return r.Text, err
}

func (c doctorChat) Memory() string { return c.d.Memory() }

type patientChat struct{ p *bot.Patient }

func (c patientChat) Ask(ctx context.Context, message string, history []types.Message) (string, error) {
	r, err := c.p.Chat(ctx, message, history)
	return r.Text, err
}

func main() {
	which := flag.String("bot", "patient", "Bot to chat with: patient or doctor")
	flag.Parse()

	// The TUI owns stdout, so logs go to a file.
	logFile, err := os.OpenFile("auticare-cli.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, nil))
	log.SetOutput(logFile)

	config.LoadEnvFile(logger)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	deps, err := server.Bootstrap(context.Background(), cfg, metrics.New(), logger)
	if err != nil {
		log.Fatalf("failed to start bots: %v", err)
	}
	defer deps.Close()

	var session tui.Session
	switch *which {
	case "doctor":
		session = tui.Session{
			Title:    "Doctor Autism Chatbot",
			Speaker:  "Doctor",
			Farewell: "Goodbye Doctor!",
			Bot:      doctorChat{deps.Doctor},
		}
	case "patient":
		session = tui.Session{
			Title:    "Autism Awareness & Support Assistant",
			Speaker:  "You",
			Farewell: "Take care! Remember, you're not alone in this journey.",
			Bot:      patientChat{deps.Patient},
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown bot %q, want patient or doctor\n", *which)
		os.Exit(2)
	}

	final, err := tea.NewProgram(tui.New(session), tea.WithAltScreen()).Run()
	if err != nil {
		log.Fatalf("terminal chat failed: %v", err)
	}
	if m, ok := final.(tui.Model); ok {
		if farewell, done := m.Farewell(); done {
			fmt.Println(farewell)
		}
	}
}
