package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/koscakluka/xperto/core/audio/miniaudio"
)

var errSelectionCancelled = errors.New("device selection cancelled")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	defaultStyle  = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
}

var pickerKeys = pickerKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
}

func (k pickerKeyMap) help() string {
	var parts []string
	for _, binding := range []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Quit} {
		parts = append(parts, binding.Help().Key+" "+binding.Help().Desc)
	}
	return strings.Join(parts, " • ")
}

type pickerStep struct {
	title   string
	devices []miniaudio.Device
}

// devicePicker asks for a microphone first and a speaker second.
type devicePicker struct {
	steps     []pickerStep
	step      int
	cursor    int
	chosen    []int
	cancelled bool
	width     int
}

func newDevicePicker(capture, playback []miniaudio.Device) devicePicker {
	m := devicePicker{
		steps: []pickerStep{
			{title: "Select the microphone", devices: capture},
			{title: "Select the speaker", devices: playback},
		},
		chosen: make([]int, 2),
		width:  80,
	}
	for i, s := range m.steps {
		m.chosen[i] = defaultIndex(s.devices)
	}
	m.cursor = m.chosen[0]
	return m
}

func defaultIndex(devices []miniaudio.Device) int {
	for i, device := range devices {
		if device.Default {
			return i
		}
	}
	return 0
}

func (m devicePicker) Init() tea.Cmd { return nil }

func (m devicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		devices := m.steps[m.step].devices
		switch {
		case key.Matches(msg, pickerKeys.Quit):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, pickerKeys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, pickerKeys.Down):
			if m.cursor < len(devices)-1 {
				m.cursor++
			}
		case key.Matches(msg, pickerKeys.Back):
			if m.step > 0 {
				m.step--
				m.cursor = m.chosen[m.step]
			}
		case key.Matches(msg, pickerKeys.Select):
			m.chosen[m.step] = m.cursor
			if m.step == len(m.steps)-1 {
				return m, tea.Quit
			}
			m.step++
			m.cursor = m.chosen[m.step]
		}
	}
	return m, nil
}

func (m devicePicker) View() string {
	step := m.steps[m.step]
	nameWidth := uint(max(m.width-16, 10))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d/%d)", step.title, m.step+1, len(m.steps))))
	b.WriteString("\n")
	for i, device := range step.devices {
		line := truncate.StringWithTail(device.Name, nameWidth, "…")
		if device.Default {
			line += " " + defaultStyle.Render("(default)")
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(pickerKeys.help()))
	b.WriteString("\n")
	return b.String()
}

// selection returns the chosen devices, or nil ones when a list is empty.
func (m devicePicker) selection() (capture, playback *miniaudio.Device) {
	pick := func(step int) *miniaudio.Device {
		devices := m.steps[step].devices
		if len(devices) == 0 {
			return nil
		}
		device := devices[m.chosen[step]]
		return &device
	}
	return pick(0), pick(1)
}

// selectDevices lets the user choose the audio devices interactively.
func selectDevices() ([]miniaudio.ClientOption, error) {
	capture, playback, err := miniaudio.Devices()
	if err != nil {
		return nil, err
	}
	if len(capture) == 0 || len(playback) == 0 {
		return nil, errors.New("no audio devices found")
	}

	final, err := tea.NewProgram(newDevicePicker(capture, playback), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("device selection failed: %w", err)
	}
	picker := final.(devicePicker)
	if picker.cancelled {
		return nil, errSelectionCancelled
	}

	mic, speaker := picker.selection()
	return []miniaudio.ClientOption{
		miniaudio.WithCaptureDevice(*mic),
		miniaudio.WithPlaybackDevice(*speaker),
	}, nil
}

func printDevices(w io.Writer) error {
	capture, playback, err := miniaudio.Devices()
	if err != nil {
		return err
	}
	for _, group := range []struct {
		title   string
		devices []miniaudio.Device
	}{{"Capture devices", capture}, {"Playback devices", playback}} {
		fmt.Fprintf(w, "%s:\n", group.title)
		for i, device := range group.devices {
			marker := ""
			if device.Default {
				marker = " (default)"
			}
			fmt.Fprintf(w, "  %d. %s%s\n", i, device.Name, marker)
		}
	}
	if len(capture) == 0 || len(playback) == 0 {
		return errors.New("no audio devices found, check your audio setup")
	}
	return nil
}
