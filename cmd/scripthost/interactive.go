package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/config"
)

const logLines = 5

// logSink keeps the last few log lines for display under the TUI, which owns
// the terminal.
type logSink struct {
	lines []string
	mu    sync.Mutex
}

func (l *logSink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.lines = append(l.lines, line)
	}
	if len(l.lines) > logLines {
		l.lines = l.lines[len(l.lines)-logLines:]
	}
	return len(p), nil
}

func (l *logSink) Sync() error { return nil }

func (l *logSink) tail() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type interactiveModel struct {
	err         error
	ctx         context.Context
	cfg         *config.Config
	session     *session
	objects     map[boundary.ModuleID]boundary.Handle
	sink        *logSink
	contextName string
	result      string
	files       []string
	funcs       []funcInfo
	inputs      []textinput.Model
	selected    int
	focusIdx    int
	state       modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(ctx context.Context, cfg *config.Config, contextName string, files []string) *interactiveModel {
	return &interactiveModel{
		ctx:         ctx,
		cfg:         cfg,
		contextName: contextName,
		files:       files,
		objects:     make(map[boundary.ModuleID]boundary.Handle),
		sink:        &logSink{},
		state:       stateSelectFunc,
	}
}

type loadedMsg struct {
	err     error
	session *session
	funcs   []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModules
}

func (m *interactiveModel) loadModules() tea.Msg {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	logger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), m.sink, m.cfg.ZapLevel()))

	s, err := openSession(m.ctx, m.cfg, m.contextName, m.files, logger)
	if err != nil {
		return loadedMsg{err: err}
	}
	mods, err := s.loaded()
	if err != nil {
		s.close(m.ctx)
		return loadedMsg{err: err}
	}

	var funcs []funcInfo
	for _, mod := range mods {
		funcs = append(funcs, exportsOf(mod)...)
	}
	return loadedMsg{session: s, funcs: funcs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.session != nil {
				m.session.close(m.ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// callFunction calls the selected export on the object of its module. Objects
// are created on first use and live until the TUI exits, so guest state
// carries over between calls.
func (m *interactiveModel) callFunction() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("modules not loaded")}
	}
	f := m.funcs[m.selected]

	mod, _, err := m.session.find(f.module + "." + f.name)
	if err != nil {
		return callResultMsg{err: err}
	}

	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = input.Value()
	}
	args, err := f.parseArgs(raw)
	if err != nil {
		return callResultMsg{err: err}
	}

	h, ok := m.objects[mod.ID]
	if !ok {
		h, err = m.session.rt.NewObject(m.ctx, mod.ID)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.objects[mod.ID] = h
	}

	res, err := m.session.rt.Call(m.ctx, h, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatResults(res)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return failureStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Loading modules..."
	}

	var b strings.Builder

	b.WriteString(moduleStyle.Render("scripthost"))
	b.WriteString(" ")
	b.WriteString(strings.Join(m.session.files, ", "))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(cursorStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", exportStyle.Render(f.module+"."+f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(signatureStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", exportStyle.Render(f.module+"."+f.name)))
		if m.err != nil {
			b.WriteString(failureStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(valueStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render("enter continue • q quit"))
	}

	if lines := m.sink.tail(); len(lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render(strings.Join(lines, "\n")))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+signatureStyle.Render(p.typeStr))
	}
	result := ""
	if f.resultType != "" {
		result = " -> " + signatureStyle.Render(f.resultType)
	}
	return signatureStyle.Render(f.module+".") + exportStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(ctx context.Context, cfg *config.Config, contextName string, files []string) error {
	p := tea.NewProgram(newInteractiveModel(ctx, cfg, contextName, files), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
