package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/merci1994dz/appdreamer-creator/internal/ipc"
)

const maxEventLines = 10

type statusMsg struct {
	state   string
	message string
	active  bool
	outcome string
	at      time.Time
	events  []eventMsg
}

type eventMsg struct {
	kind   string
	detail string
	at     time.Time
}

type refreshMsg struct {
	message string
}

type errMsg struct {
	err error
}

type pollNowMsg struct{}

type model struct {
	socketPath string
	interval   time.Duration
	status     statusMsg
	err        error
	quitting   bool
	showEvents bool
	refreshing bool
	notice     string
}

func newModel(socketPath string, interval time.Duration) model {
	return model{
		socketPath: socketPath,
		interval:   interval,
		showEvents: true,
	}
}

func (m model) Init() tea.Cmd {
	return pollStatusCmd(m.socketPath, 0)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = msg
		m.err = nil
		return m, pollStatusCmd(m.socketPath, m.interval)
	case refreshMsg:
		m.refreshing = false
		m.notice = msg.message
		return m, pollStatusCmd(m.socketPath, 0)
	case errMsg:
		m.err = msg.err
		m.refreshing = false
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg {
			return pollNowMsg{}
		})
	case pollNowMsg:
		return m, pollStatusCmd(m.socketPath, 0)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// one refresh at a time, and none while the daemon is already syncing
			if m.refreshing || m.status.active {
				return m, nil
			}
			m.refreshing = true
			m.notice = ""
			return m, refreshCmd(m.socketPath)
		case "e":
			m.showEvents = !m.showEvents
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "\n"
	}
	if m.err != nil {
		return fmt.Sprintf("tvsync status\n\nerror: %v\n\nq to quit\n", m.err)
	}
	if m.status.at.IsZero() {
		return "tvsync status\n\nloading...\n\nq to quit\n"
	}

	var b strings.Builder
	b.WriteString("tvsync status\n\n")
	b.WriteString(fmt.Sprintf("%s: %s\n", m.status.state, m.status.message))
	b.WriteString(fmt.Sprintf("updated: %s\n", m.status.at.Local().Format(time.RFC3339)))
	if m.status.outcome != "" {
		b.WriteString(fmt.Sprintf("last sync: %s\n", m.status.outcome))
	}
	switch {
	case m.refreshing:
		b.WriteString("\nrefreshing channel list...\n")
	case m.notice != "":
		b.WriteString(fmt.Sprintf("\n%s\n", m.notice))
	}

	if m.showEvents {
		b.WriteString("\nrecent events:\n")
		if len(m.status.events) == 0 {
			b.WriteString("- (none)\n")
		} else {
			for i, evt := range m.status.events {
				if i >= maxEventLines {
					break
				}
				b.WriteString(formatEventLine(evt))
			}
		}
	}

	b.WriteString("\nq to quit, r to refresh, e to toggle events\n")
	return b.String()
}

func pollStatusCmd(socketPath string, delay time.Duration) tea.Cmd {
	poll := func() tea.Msg {
		client, err := dial(socketPath)
		if err != nil {
			return errMsg{err: err}
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		reply, err := client.Status(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return toStatusMsg(reply)
	}
	if delay <= 0 {
		return poll
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return poll() })
}

func refreshCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := dial(socketPath)
		if err != nil {
			return errMsg{err: err}
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		reply, err := client.Refresh(ctx, true)
		if err != nil {
			return errMsg{err: err}
		}
		return refreshMsg{message: reply.Message}
	}
}

func toStatusMsg(reply *ipc.StatusReply) statusMsg {
	msg := statusMsg{
		state:   reply.State,
		message: reply.Message,
		active:  reply.Active,
		outcome: reply.LastOutcome,
		at:      reply.UpdatedAt,
	}
	if msg.at.IsZero() {
		msg.at = time.Now()
	}
	// newest first
	for i := len(reply.Events) - 1; i >= 0; i-- {
		evt := reply.Events[i]
		msg.events = append(msg.events, eventMsg{kind: evt.Kind, detail: evt.Detail, at: evt.OccurredAt})
	}
	return msg
}

func formatEventLine(evt eventMsg) string {
	when := "-"
	if !evt.at.IsZero() {
		when = evt.at.Local().Format("15:04:05")
	}
	return fmt.Sprintf("- %s %s (%s)\n", evt.kind, evt.detail, when)
}
