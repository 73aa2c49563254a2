package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/vizguard/internal/capture"
	"github.com/ShayCichocki/vizguard/internal/orchestrator"
	"github.com/ShayCichocki/vizguard/internal/tui"
)

// runWithTUI runs the pipeline behind the live progress view.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, opts orchestrator.Options,
	jobs chan capture.JobEvent, emitter *orchestrator.EventEmitter) (result *orchestrator.Result, retErr error) {
	verbose := os.Getenv("VIZGUARD_DEBUG") != ""

	// Log output corrupts the display.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runWithTUI: %v", r)
		}
	}()

	program, _ := tui.NewProgressProgram(opts.Viewports)
	if program == nil {
		return nil, fmt.Errorf("failed to create TUI program (nil)")
	}

	go forwardJobsToTUI(program, jobs)
	go forwardEventsToTUI(program, emitter.Events())

	type runOutcome struct {
		result *orchestrator.Result
		err    error
	}
	orchDone := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				orchDone <- runOutcome{err: fmt.Errorf("PANIC in orchestrator: %v", r)}
			}
		}()
		res, err := orch.Run(ctx, opts)
		close(jobs)
		emitter.Close()
		orchDone <- runOutcome{result: res, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				tuiDone <- fmt.Errorf("PANIC in TUI: %v", r)
			}
		}()
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case out := <-orchDone:
		if out.err != nil {
			program.Send(tui.DoneMsg{Success: false, Message: out.err.Error()})
		} else {
			program.Send(tui.DoneMsg{
				Success:    true,
				Message:    fmt.Sprintf("%s (score %.3f)", out.result.Report.Status, out.result.Report.OverallScore),
				ReportPath: out.result.Paths.Primary(),
			})
		}
		// Wait for the user to quit so the result stays visible.
		<-tuiDone
		return out.result, out.err

	case err := <-tuiDone:
		if verbose {
			fmt.Printf("[DEBUG] runWithTUI: TUI done, err=%v\n", err)
		}
		// The view is gone; let the run finish without it.
		out := <-orchDone
		if out.err != nil {
			return nil, out.err
		}
		return out.result, err
	}
}

// forwardJobsToTUI converts capture job transitions to TUI messages.
func forwardJobsToTUI(program *tea.Program, jobs <-chan capture.JobEvent) {
	for ev := range jobs {
		errStr := ""
		if ev.Err != nil {
			errStr = ev.Err.Error()
		}
		program.Send(tui.JobMsg{
			Index: ev.Index,
			State: tui.JobState(ev.State),
			Error: errStr,
			At:    ev.At,
		})
	}
}

// forwardEventsToTUI converts orchestrator events to TUI messages.
func forwardEventsToTUI(program *tea.Program, events <-chan orchestrator.OrchestratorEvent) {
	for event := range events {
		if event.Type == orchestrator.EventRunDone {
			continue
		}
		errStr := ""
		if event.Error != nil {
			errStr = event.Error.Error()
		}
		program.Send(tui.StageMsg{
			Type:     tui.StageEventType(event.Type),
			Stage:    string(event.Stage),
			Message:  event.Message,
			Error:    errStr,
			Duration: event.Duration,
		})
	}
}
