// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unabiz/unashield/pkg/sigfox"
	"github.com/unabiz/unashield/pkg/transceiver"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	idlePollInterval = 250 * time.Millisecond
	minPollInterval  = 5 * time.Millisecond
	maxPollInterval  = 250 * time.Millisecond

	// Largest value a scaled 16-bit field holds
	maxFieldValue = math.MaxInt16 / sigfox.ValueScale
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventEntry is one line of the event log
type eventEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings and info
}

// eventLog collects monitor events and driver log lines. It is only
// touched from the Bubble Tea update loop, which is also the only place the
// driver runs.
type eventLog struct {
	entries []eventEntry
	max     int
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, eventEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Write receives slog text handler output.
func (l *eventLog) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if _, rest, ok := strings.Cut(line, "level="); ok {
			line = "level=" + rest
		}
		l.add(line, strings.HasPrefix(line, "level=ERROR"))
	}
	return len(p), nil
}

type monitorOptions struct {
	interval  time.Duration
	heartbeat bool
	downlink  bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	radio    transceiver.Transceiver
	connInfo string
	opts     monitorOptions

	// In-flight send, polled from the tick
	task      *transceiver.Task
	taskLabel string
	taskStart time.Time

	// Heartbeat
	started       time.Time
	counter       int
	nextHeartbeat time.Time
	uptimeCapped  bool

	events *eventLog

	input   textinput.Model
	spinner spinner.Model

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(conn *connection, events *eventLog, opts monitorOptions) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "hex payload, e.g. 0102030405"
	ti.CharLimit = sigfox.MaxMessageHex
	ti.Width = sigfox.MaxMessageHex + 2
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	now := time.Now()
	return monitorModel{
		radio:         conn.radio,
		connInfo:      conn.info,
		opts:          opts,
		started:       now,
		nextHeartbeat: now,
		events:        events,
		input:         ti,
		spinner:       sp,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(0), m.spinner.Tick, textinput.Blink)
}

func monitorTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.abortTask()
			return m, tea.Quit
		case "enter":
			m.sendInput()
			return m, nil
		case "ctrl+s":
			m.startHeartbeat()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		next := m.poll()
		return m, monitorTickCmd(next)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// poll advances the in-flight task or starts a due heartbeat, and returns
// how long to wait before the next tick.
func (m *monitorModel) poll() time.Duration {
	if m.task == nil {
		if m.opts.heartbeat && !time.Now().Before(m.nextHeartbeat) && m.radio.IsReady() {
			m.startHeartbeat()
		}
		if m.task == nil {
			return idlePollInterval
		}
	}

	if m.task.Poll() {
		m.finishTask()
		return idlePollInterval
	}
	return min(max(m.task.WakeIn(), minPollInterval), maxPollInterval)
}

func (m *monitorModel) startHeartbeat() {
	if m.task != nil {
		m.events.add("send already in progress", true)
		return
	}
	m.counter++
	upt, capped := uptimeMinutes(time.Since(m.started))
	if capped && !m.uptimeCapped {
		m.events.add(fmt.Sprintf("uptime over %d minutes, upt field held at %d", maxFieldValue, maxFieldValue), false)
	}
	m.uptimeCapped = capped
	msg := sigfox.NewMessage().
		AddField("ctr", heartbeatCounter(m.counter)).
		AddField("upt", upt)
	m.nextHeartbeat = time.Now().Add(m.opts.interval)
	m.startTask(fmt.Sprintf("heartbeat #%d", m.counter), msg.Encoded(), m.opts.downlink)
}

// uptimeMinutes returns the upt field value, capped to what the field holds.
func uptimeMinutes(d time.Duration) (int, bool) {
	minutes := int(d.Minutes())
	if minutes > maxFieldValue {
		return maxFieldValue, true
	}
	return minutes, false
}

// heartbeatCounter wraps the ctr field back to 0 after maxFieldValue.
func heartbeatCounter(n int) int {
	return n % (maxFieldValue + 1)
}

func (m *monitorModel) sendInput() {
	payload := strings.ToLower(strings.TrimSpace(m.input.Value()))
	if payload == "" {
		return
	}
	if errs := sigfox.ValidatePayload(payload); len(errs) > 0 {
		m.events.add(fmt.Sprintf("rejected %q: %s", payload, errs[0].Message), true)
		return
	}
	if m.task != nil {
		m.events.add("send already in progress", true)
		return
	}
	m.input.Reset()
	m.startTask("payload "+payload, payload, false)
}

func (m *monitorModel) startTask(label, payload string, downlink bool) {
	var (
		task *transceiver.Task
		err  error
	)
	if downlink {
		task, err = m.radio.SendMessageAndGetResponseTask(payload)
	} else {
		task, err = m.radio.SendMessageTask(payload)
	}
	if err != nil {
		m.events.add(fmt.Sprintf("%s: %v", label, err), true)
		return
	}
	m.task = task
	m.taskLabel = label
	m.taskStart = time.Now()
	m.events.add(fmt.Sprintf("sending %s (%s)", label, payload), false)
}

func (m *monitorModel) finishTask() {
	result, err := m.task.Result()
	elapsed := time.Since(m.taskStart).Round(time.Millisecond)
	switch {
	case errors.Is(err, transceiver.ErrDutyCycle):
		m.events.add(fmt.Sprintf("%s held back: %v", m.taskLabel, err), true)
	case err != nil:
		m.events.add(fmt.Sprintf("%s failed after %s: %v", m.taskLabel, elapsed, err), true)
	case result != "":
		m.events.add(fmt.Sprintf("%s sent in %s, downlink %s", m.taskLabel, elapsed, result), false)
	default:
		m.events.add(fmt.Sprintf("%s sent in %s", m.taskLabel, elapsed), false)
	}
	m.task = nil
}

func (m monitorModel) abortTask() {
	if m.task != nil && !m.task.Done() {
		m.task.Abort(errors.New("monitor closed"))
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder

	s.WriteString(titleStyle.Render("UNASHIELD MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | enter: send  ctrl+s: heartbeat  esc: quit", m.connInfo)))
	s.WriteString("\n\n")

	// Module and duty cycle
	var status strings.Builder
	status.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Device:"), valueStyle.Render(m.radio.Device()),
		labelStyle.Render("Zone:"), valueStyle.Render(m.radio.Zone().String())))

	if m.task != nil {
		status.WriteString(fmt.Sprintf("%s %s %s (%s)\n",
			labelStyle.Render("Task:"), m.spinner.View(), m.taskLabel,
			time.Since(m.taskStart).Round(time.Second)))
	} else {
		status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Task:"), headerStyle.Render("idle")))
	}

	if wait := m.radio.NextSendIn(); wait > 0 {
		status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Duty cycle:"),
			errorStyle.Render(fmt.Sprintf("blocked for %s", wait.Round(100*time.Millisecond)))))
	} else if wait := m.radio.RegulatoryWait(); wait > 0 {
		status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Duty cycle:"),
			warningStyle.Render(fmt.Sprintf("ready, 10 min interval in %s", wait.Round(time.Second)))))
	} else {
		status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Duty cycle:"), valueStyle.Render("ready")))
	}

	if m.opts.heartbeat {
		next := time.Until(m.nextHeartbeat).Round(time.Second)
		if next < 0 {
			next = 0
		}
		status.WriteString(fmt.Sprintf("%s #%d, next in %s", labelStyle.Render("Heartbeat:"), m.counter, next))
	} else {
		status.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Heartbeat:"), headerStyle.Render("off")))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(status.String()))
	s.WriteString("\n")

	// Statistics
	stats := m.radio.Statistics()
	statsLine := fmt.Sprintf("%s %d  %s %d  %s %d  %s %d  %s %d",
		labelStyle.Render("Commands:"), stats.Commands,
		labelStyle.Render("OK:"), stats.Successes,
		labelStyle.Render("Timeouts:"), stats.Timeouts,
		labelStyle.Render("Uplinks:"), stats.Uplinks,
		labelStyle.Render("Downlinks:"), stats.Downlinks)
	if stats.DutyCycleRejections > 0 {
		statsLine += "  " + errorStyle.Render(fmt.Sprintf("Held: %d", stats.DutyCycleRejections))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(statsLine))
	s.WriteString("\n")

	// Input
	s.WriteString(boxStyle.Width(m.width - 4).Render(labelStyle.Render("Payload: ") + m.input.View()))
	s.WriteString("\n")

	// Event log, newest last, sized to what is left of the screen
	maxLines := m.height - 16
	if maxLines < 3 {
		maxLines = 3
	}
	entries := m.events.entries
	if len(entries) > maxLines {
		entries = entries[len(entries)-maxLines:]
	}
	var log strings.Builder
	log.WriteString(labelStyle.Render("Events"))
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		log.WriteString("\n" + line)
	}
	if len(entries) == 0 {
		log.WriteString("\n" + headerStyle.Render("No events yet"))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(log.String()))

	return s.String()
}
