package tui

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/robottwo/neurodx/internal/predict"
	"github.com/robottwo/neurodx/internal/session"
	"go.uber.org/zap"
)

type model struct {
	ctrl   *session.Controller
	ctx    context.Context
	logger *zap.Logger

	width    int
	height   int
	quitting bool

	symptomInput textinput.Model
	pathInput    textinput.Model
	spinner      spinner.Model

	// path the selected image was loaded from
	loadedPath string
	fileErr    string
	notice     string

	loadImage func(path string) (*predict.ImageFile, error)
	copy      func(text string) error
}

func initialModel(ctx context.Context, ctrl *session.Controller, logger *zap.Logger) model {
	m := model{
		ctrl:      ctrl,
		ctx:       ctx,
		logger:    logger,
		loadImage: predict.LoadImageFile,
		copy:      clipboard.WriteAll,
	}

	symptomInput := textinput.New()
	symptomInput.Placeholder = "Describe symptoms, e.g. fever, cough, headache"
	symptomInput.Prompt = "> "
	symptomInput.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	symptomInput.CharLimit = 2000
	symptomInput.SetValue(ctrl.State().Symptoms)
	m.symptomInput = symptomInput

	pathInput := textinput.New()
	pathInput.Placeholder = "Path to a chest X-ray image"
	pathInput.Prompt = "> "
	pathInput.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	m.pathInput = pathInput

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	m.spinner = s

	m.focusForTab(ctrl.State().Tab)
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) focusForTab(tab session.Tab) {
	m.symptomInput.Blur()
	m.pathInput.Blur()

	switch tab {
	case session.TabSymptoms:
		m.symptomInput.Focus()
	case session.TabImage:
		m.pathInput.Focus()
	}
}
