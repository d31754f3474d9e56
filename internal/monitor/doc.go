// Package monitor is the interactive terminal UI.
//
// It lists the runs of a workspace with their artifacts and filtered logs,
// fills a run request through the conversation controller, and monitors the
// run it starts: agent status, the workflow phase and the last events.
// While a run is active p toggles pause and c requests cancellation.
//
//	p := tea.NewProgram(monitor.NewModel(cfg, monitor.WithWorkspace(path)))
//	_, err := p.Run()
package monitor
