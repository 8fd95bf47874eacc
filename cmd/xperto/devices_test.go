package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koscakluka/xperto/core/audio/miniaudio"
)

func press(t *testing.T, m devicePicker, keys ...tea.KeyMsg) (devicePicker, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = m.Update(k)
		m = model.(devicePicker)
	}
	return m, cmd
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func testDevices() (capture, playback []miniaudio.Device) {
	capture = []miniaudio.Device{{Name: "Built-in Microphone"}, {Name: "USB Conference Mic", Default: true}}
	playback = []miniaudio.Device{{Name: "Speakers", Default: true}, {Name: "Headphones"}}
	return capture, playback
}

func TestDevicePickerStartsOnDefaults(t *testing.T) {
	m := newDevicePicker(testDevices())
	if m.cursor != 1 {
		t.Fatalf("expected cursor on the default microphone, got %d", m.cursor)
	}

	m, cmd := press(t, m, keyEnter)
	if cmd != nil || m.step != 1 || m.cursor != 0 {
		t.Fatalf("expected speaker step on the default speaker, got step %d cursor %d", m.step, m.cursor)
	}

	m, cmd = press(t, m, keyDown, keyDown, keyEnter)
	if cmd == nil {
		t.Fatalf("expected the picker to quit after the last step")
	}
	mic, speaker := m.selection()
	if mic.Name != "USB Conference Mic" || speaker.Name != "Headphones" {
		t.Fatalf("unexpected selection %q, %q", mic.Name, speaker.Name)
	}
}

func TestDevicePickerGoesBack(t *testing.T) {
	m := newDevicePicker(testDevices())
	m, _ = press(t, m, keyUp, keyEnter, keyEsc)
	if m.step != 0 || m.cursor != 0 {
		t.Fatalf("expected to return to the first choice, got step %d cursor %d", m.step, m.cursor)
	}
	m, _ = press(t, m, keyUp)
	if m.cursor != 0 {
		t.Fatalf("expected cursor to stay at the top, got %d", m.cursor)
	}
}

func TestDevicePickerQuit(t *testing.T) {
	m, cmd := press(t, newDevicePicker(testDevices()), keyQuit)
	if !m.cancelled || cmd == nil {
		t.Fatalf("expected picker to be cancelled")
	}
}

func TestDevicePickerView(t *testing.T) {
	m := newDevicePicker(testDevices())
	view := m.View()
	for _, want := range []string{"Select the microphone (1/2)", "USB Conference Mic", "(default)", "enter select"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got:\n%s", want, view)
		}
	}

	m, _ = press(t, m, keyEnter)
	if view = m.View(); !strings.Contains(view, "Select the speaker (2/2)") {
		t.Fatalf("expected the speaker step, got:\n%s", view)
	}
}

func TestDevicePickerTruncatesLongNames(t *testing.T) {
	long := []miniaudio.Device{{Name: "Realtek High Definition Audio Front Panel Microphone Array"}}
	m := newDevicePicker(long, long)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 30})
	view := model.(devicePicker).View()
	if strings.Contains(view, "Microphone Array") || !strings.Contains(view, "…") {
		t.Fatalf("expected the long name to be truncated, got:\n%s", view)
	}
}
