// Package tui provides the terminal progress view for vizguard validate --tui.
//
// The view is read-only. It shows:
//   - The orchestration stage currently running
//   - One row per viewport with its capture state
//   - A progress bar over finished viewports
//   - The final status and report path once the run is over
//
// Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, view := tui.NewProgressProgram(viewports)
//	go program.Run()
//
//	program.Send(tui.JobMsg{Index: 0, State: tui.JobRunning})
//	program.Send(tui.StageMsg{Stage: "REPORT_GENERATION", Type: tui.StageCompleted})
//	program.Send(tui.DoneMsg{Success: true, Message: "PASSED"})
package tui
