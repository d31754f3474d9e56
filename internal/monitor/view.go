package monitor

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/archharness/internal/conversation"
)

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenRuns:
		content = m.viewRuns()
	case screenChat:
		content = m.viewChat()
	case screenConfirm:
		content = m.viewConfirm()
	case screenMonitor:
		content = m.viewMonitor()
	case screenArtifacts:
		content = m.viewArtifacts()
	case screenLogs:
		content = m.viewLogs()
	}
	if m.notice != "" {
		content += "\n" + warningStyle.Render(m.notice)
	}
	return containerStyle.Render(content)
}

func (m Model) viewRuns() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" ArchHarness ") + "\n")
	if m.workspace == "" {
		b.WriteString(dimStyle.Render("No workspace specified.") + "\n")
	} else {
		b.WriteString(labelStyle.Render("Workspace: ") + valueStyle.Render(m.workspace) + "\n")
	}

	b.WriteString(sectionStyle.Render("┃ Run List") + "\n")
	if len(m.runList) == 0 {
		b.WriteString(dimStyle.Render("  (no runs yet)") + "\n")
	}
	for i, r := range m.runList {
		line := fmt.Sprintf(" %2d. %-22s %-18s", i+1, r.ID, r.Workflow)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + " " + statusBadge(r.Status) + "\n")
	}

	b.WriteString("\n" + footer("n", "new chat run", "a", "artifacts", "l", "logs", "r", "refresh", "q", "quit"))
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" ArchHarness Chat ") + "  " +
		dimStyle.Render("TUI assistant: "+m.assistantModel()) + "\n")

	history := m.controller.History()
	if len(history) == 0 {
		b.WriteString(dimStyle.Render("Describe what you want to do. Examples:") + "\n")
		for _, ex := range []string{
			"Create a new React app called ClaimsPortal and add a login page.",
			"Use my existing folder ./MyApp and implement the feature.",
			"Use Opus for architecture review of ./my-repo",
		} {
			b.WriteString(dimStyle.Render("  • "+ex) + "\n")
		}
	}
	for _, turn := range history {
		if turn.Speaker == conversation.SpeakerUser {
			b.WriteString(userStyle.Render("You: ") + turn.Text + "\n")
		} else {
			b.WriteString(assistantStyle.Render("Assistant:") + "\n" + turn.Text + "\n\n")
		}
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(footer("n", "new project", "e", "existing folder", "r", "review diff", "esc", "cancel"))
	return b.String()
}

func (m Model) assistantModel() string {
	if model := m.controller.Slots().ModelOverrides.TUIAssistant; model != "" {
		return model
	}
	if m.cfg.TUI.Assistant.Model != "" {
		return m.cfg.TUI.Assistant.Model
	}
	return conversation.DefaultAssistantModel
}

func (m Model) viewConfirm() string {
	return headerStyle.Render(" Confirm Run ") + "\n\n" +
		m.controller.Summary() + "\n\n" +
		footer("r", "run", "e", "edit", "c", "cancel")
}

func (m Model) viewMonitor() string {
	var b strings.Builder

	state := "running"
	switch {
	case !m.running && m.runErr != nil:
		state = "failed"
	case !m.running && m.result != nil:
		state = m.result.Status
	case m.ctrl != nil && m.ctrl.IsPaused():
		state = "paused"
	}

	elapsed := m.now().Sub(m.started)
	if !m.running {
		elapsed = m.finished.Sub(m.started)
	}

	b.WriteString(headerStyle.Render(" Run Monitor ") + "   " + statusBadge(state) + "   " +
		dimStyle.Render("Elapsed: ") + valueStyle.Render(FormatDuration(elapsed)) + "\n")
	if m.req != nil {
		b.WriteString(labelStyle.Render("Workspace type: ") + valueStyle.Render(m.req.WorkspaceMode) +
			"  " + labelStyle.Render("Workflow: ") + valueStyle.Render(m.req.Workflow) + "\n")
	}

	phase := string(m.phase)
	if phase == "" {
		phase = "-"
	}
	b.WriteString(labelStyle.Render("Phase: ") + valueStyle.Render(phase) +
		"  " + labelStyle.Render("Iteration: ") + valueStyle.Render(fmt.Sprintf("%d", m.iteration)) + "\n")
	b.WriteString(m.phaseProgress.ViewAs(phaseRatio(m.phase)) + "\n")

	b.WriteString(sectionStyle.Render("┃ Agents") + "\n")
	for _, st := range m.board.States() {
		model, step := st.Model, st.CurrentStep
		if model == "" {
			model = "-"
		}
		if step == "" {
			step = "-"
		}
		b.WriteString(fmt.Sprintf("  %-12s %s %-10s %s %-9s %s %s\n",
			st.Role,
			dimStyle.Render("model="), model,
			dimStyle.Render("status="), st.Status,
			dimStyle.Render("step="), step))
	}

	b.WriteString(sectionStyle.Render("┃ Logs") + "\n")
	for _, ev := range m.live {
		b.WriteString(levelStyle(string(ev.Level)).Render(FormatEvent(ev)) + "\n")
	}

	if line := m.resultLine(); line != "" {
		style := healthyStyle
		if m.runErr != nil {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(line) + "\n")
	}

	if m.running {
		b.WriteString(footer("p", "pause/resume", "c", "cancel", "ctrl+c", "cancel and quit"))
	} else {
		b.WriteString(footer("enter", "back to runs"))
	}
	return b.String()
}

func (m Model) viewArtifacts() string {
	var b strings.Builder
	run, _ := m.selected()
	b.WriteString(headerStyle.Render(" Artifacts ") + "  " + dimStyle.Render(run.Dir) + "\n\n")
	if len(m.artifacts) == 0 {
		b.WriteString(dimStyle.Render("  (no artifacts)") + "\n")
	}
	for _, a := range m.artifacts {
		b.WriteString(fmt.Sprintf("  - %-28s %s\n", a.Name, dimStyle.Render(FormatSize(a.Size))))
	}
	b.WriteString("\n" + footer("l", "logs", "esc", "back"))
	return b.String()
}

func (m Model) viewLogs() string {
	var b strings.Builder
	run, _ := m.selected()

	role := m.filter.Role
	if role == "" {
		role = "all"
	}
	search := m.filter.Search
	if search == "" {
		search = "-"
	}
	b.WriteString(headerStyle.Render(" Logs ") + "  " + dimStyle.Render(run.ID) + "\n")
	b.WriteString(labelStyle.Render("Role: ") + valueStyle.Render(role) +
		"  " + labelStyle.Render("Search: ") + valueStyle.Render(search) +
		"  " + dimStyle.Render(fmt.Sprintf("(%d event(s))", len(m.logs))) + "\n\n")

	for _, ev := range m.logs {
		b.WriteString(levelStyle(string(ev.Level)).Render(FormatEvent(ev)) + "\n")
	}
	if m.searching {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	b.WriteString("\n" + footer("f", "role filter", "/", "search", "x", "clear", "esc", "back"))
	return b.String()
}
