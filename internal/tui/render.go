package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/robottwo/neurodx/internal/session"
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	activeTabStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	resultStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	boxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var tabLabels = map[session.Tab]string{
	session.TabSymptoms:    "Symptoms",
	session.TabImage:       "X-ray Analysis",
	session.TabPatientData: "Patient Data",
}

const maxFileNameWidth = 40

func (m model) View() string {
	if m.quitting {
		return ""
	}

	state := m.ctrl.State()

	contentWidth := m.width - 6
	if contentWidth < 30 {
		contentWidth = 30
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("NeuroDx") + "\n\n")
	b.WriteString(renderTabs(state.Tab) + "\n\n")

	switch state.Tab {
	case session.TabSymptoms:
		b.WriteString(m.renderSymptoms())
	case session.TabImage:
		b.WriteString(m.renderImage(state))
	case session.TabPatientData:
		b.WriteString(renderPatientData())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus(state, contentWidth))

	b.WriteString("\n" + helpStyle.Render(helpText(state)))

	return boxStyle.Width(contentWidth).Render(b.String())
}

func renderTabs(active session.Tab) string {
	tabs := make([]string, 0, len(session.AllTabs))
	for _, tab := range session.AllTabs {
		style := inactiveTabStyle
		if tab == active {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(tabLabels[tab]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderSymptoms() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Symptoms:") + "\n")
	b.WriteString(m.symptomInput.View() + "\n")
	return b.String()
}

func (m model) renderImage(state session.ViewState) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Image file:") + "\n")
	b.WriteString(m.pathInput.View() + "\n")

	if file := m.ctrl.ImageFile(); state.HasImage() && file != nil {
		name := runewidth.Truncate(state.ImageName, maxFileNameWidth, "…")
		b.WriteString(labelStyle.Render("Selected: ") + name + " (" + humanize.Bytes(uint64(file.Size())) + ")\n")
	}
	if m.fileErr != "" {
		b.WriteString(errorStyle.Render(m.fileErr) + "\n")
	}
	return b.String()
}

func renderPatientData() string {
	return labelStyle.Render("Patient Data (Coming Soon)") + "\n"
}

func (m model) renderStatus(state session.ViewState, width int) string {
	var b strings.Builder

	if state.Pending {
		b.WriteString(m.spinner.View() + " Predicting...\n")
	}

	if msg := state.ErrorMessage(); msg != "" {
		b.WriteString(errorStyle.Render(wordwrap.String(msg, width)) + "\n")
	}

	if result := state.Result(); result != "" {
		b.WriteString(labelStyle.Render("Prediction:") + "\n")
		style := resultStyle
		if state.Label == "" {
			style = errorStyle
		}
		b.WriteString(style.Render(wordwrap.String(result, width)) + "\n")
	}

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}

	return b.String()
}

func helpText(state session.ViewState) string {
	parts := []string{"Tab/Shift+Tab: Switch view"}
	if state.Tab != session.TabPatientData {
		parts = append(parts, "Enter: Predict")
	}
	if state.Pending {
		parts = append(parts, "Esc: Cancel")
	}
	if state.Label != "" {
		parts = append(parts, "Ctrl+Y: Copy")
	}
	parts = append(parts, "Ctrl+C: Quit")
	return strings.Join(parts, " | ")
}
