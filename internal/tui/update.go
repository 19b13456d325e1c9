package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/robottwo/neurodx/internal/session"
	"go.uber.org/zap"
)

// predictionMsg carries the outcome of a finished submission back to the
// event loop.
type predictionMsg struct {
	outcome session.Outcome
}

func runTask(task *session.Task) tea.Cmd {
	return func() tea.Msg {
		return predictionMsg{outcome: task.Run()}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputWidth := msg.Width - 12
		if inputWidth < 20 {
			inputWidth = 20
		}
		m.symptomInput.Width = inputWidth
		m.pathInput.Width = inputWidth
		return m, nil

	case predictionMsg:
		if !m.ctrl.Finish(msg.outcome) {
			return m, nil
		}
		m.notice = ""
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.State().Pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.ctrl.Close()
		m.quitting = true
		return m, tea.Quit

	case tea.KeyTab:
		return m.selectTab(m.ctrl.State().Tab.Next())

	case tea.KeyShiftTab:
		return m.selectTab(m.ctrl.State().Tab.Prev())

	case tea.KeyEsc:
		if m.ctrl.CancelPending() {
			m.notice = "Prediction cancelled."
		}
		return m, nil

	case tea.KeyCtrlY:
		return m.copyResult()

	case tea.KeyEnter:
		return m.submit()
	}

	return m.updateInputs(msg)
}

func (m model) selectTab(tab session.Tab) (tea.Model, tea.Cmd) {
	if err := m.ctrl.SelectTab(tab); err != nil {
		m.logger.Warn("failed to select tab", zap.String("tab", string(tab)), zap.Error(err))
		return m, nil
	}
	m.notice = ""
	m.fileErr = ""
	m.focusForTab(tab)
	return m, nil
}

func (m model) submit() (tea.Model, tea.Cmd) {
	m.notice = ""
	// a superseded submission leaves its spinner loop running
	ticking := m.ctrl.State().Pending

	var (
		task *session.Task
		ok   bool
	)

	switch m.ctrl.State().Tab {
	case session.TabSymptoms:
		m.ctrl.SetSymptoms(m.symptomInput.Value())
		task, ok = m.ctrl.StartSymptoms(m.ctx)

	case session.TabImage:
		if !m.selectImage() {
			return m, nil
		}
		task, ok = m.ctrl.StartImage(m.ctx)

	default:
		return m, nil
	}

	if !ok {
		return m, nil
	}
	if ticking {
		return m, runTask(task)
	}
	return m, tea.Batch(runTask(task), m.spinner.Tick)
}

// selectImage loads the file named in the path input when it differs from
// the one already selected. It reports false when loading failed.
func (m *model) selectImage() bool {
	path := m.pathInput.Value()
	m.fileErr = ""

	if path == "" {
		m.loadedPath = ""
		m.ctrl.SetImageFile(nil)
		return true
	}
	if path == m.loadedPath && m.ctrl.ImageFile() != nil {
		return true
	}

	file, err := m.loadImage(path)
	if err != nil {
		m.logger.Debug("failed to load image", zap.String("path", path), zap.Error(err))
		m.fileErr = fmt.Sprintf("Could not open image: %v", err)
		m.loadedPath = ""
		m.ctrl.SetImageFile(nil)
		m.ctrl.Discard()
		return false
	}

	m.loadedPath = path
	m.ctrl.SetImageFile(file)
	return true
}

func (m model) copyResult() (tea.Model, tea.Cmd) {
	state := m.ctrl.State()
	if state.Label == "" {
		return m, nil
	}

	if err := m.copy(state.Label); err != nil {
		m.logger.Debug("clipboard unavailable", zap.Error(err))
		m.notice = "Clipboard unavailable."
		return m, nil
	}
	m.notice = "Copied to clipboard."
	return m, nil
}

func (m model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.ctrl.State().Tab {
	case session.TabSymptoms:
		m.symptomInput, cmd = m.symptomInput.Update(msg)
		m.ctrl.SetSymptoms(m.symptomInput.Value())
	case session.TabImage:
		m.pathInput, cmd = m.pathInput.Update(msg)
		if m.pathInput.Value() != m.loadedPath {
			m.fileErr = ""
		}
	}

	return m, cmd
}
