package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"stemgrid/api"
	"stemgrid/internal/analysis"
	"stemgrid/internal/audio"
	"stemgrid/internal/config"
	"stemgrid/internal/prefs"
	"stemgrid/internal/ui"
	"stemgrid/pkg/events"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	jobID := flag.String("job", "", "resume an existing analysis job")
	genre := flag.String("genre", string(api.GenreUnknown), "genre hint: salsa, bachata or unknown")
	flag.Parse()

	if *jobID == "" && flag.NArg() != 1 {
		return fmt.Errorf("usage: player [-job ID] [-genre salsa|bachata] <song-url>")
	}

	cfg := config.Load()

	// Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	client := analysis.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, cfg.PollTimeout)

	id := *jobID
	if id == "" {
		var err error
		id, err = client.Analyze(ctx, flag.Arg(0), api.GenreHint(*genre))
		if err != nil {
			return fmt.Errorf("submit analysis: %w", err)
		}
		fmt.Printf("Analysis job %s submitted\n", id)
	}

	result, err := client.WaitForResult(ctx, id, func(job api.JobResponse) {
		fmt.Printf("  %s (%.0f%%)\n", job.Status, job.Progress*100)
	})
	if err != nil {
		return fmt.Errorf("wait for analysis: %w", err)
	}

	bus := events.NewEventBus()
	defer bus.Close()

	engine := audio.NewEngine(audio.NewSpeakerDevice(), bus, audio.Options{
		SkipStep:     cfg.SkipStep,
		EndTolerance: cfg.EndTolerance,
	})

	fmt.Println("Loading stems...")
	if err := engine.Load(ctx, client.Session(id), result); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	// Restore the saved mixer state before the first frame.
	saved, err := prefs.Load(cfg.PrefsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prefs unavailable: %v\n", err)
		saved = &prefs.Prefs{}
	}
	engine.SetMixerState(saved.Muted, saved.Soloed)

	program := tea.NewProgram(ui.NewModel(engine, bus, cfg.FrameInterval, saved.PinnedStem), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	engine.Pause()

	if m, ok := final.(ui.Model); ok {
		saved.PinnedStem = m.Pinned()
	}
	saved.Muted = engine.Mixer().MutedStems()
	saved.Soloed = engine.Mixer().Soloed()
	if err := prefs.Save(saved, cfg.PrefsPath); err != nil {
		fmt.Fprintf(os.Stderr, "save prefs: %v\n", err)
	}
	return nil
}
