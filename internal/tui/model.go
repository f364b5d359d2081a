// Package tui renders a running download with Bubble Tea.
//
// The model never touches the output file. It only mirrors consumer.Update
// values delivered through the pub/sub broker, so plain and TUI runs write
// identical bytes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/lurchfeed/internal/consumer"
	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/lurch"
	"github.com/zjrosen/lurchfeed/internal/pubsub"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 80
	maxLogWidth     = 100
)

// UpdateMsg is a broker event as delivered to the model.
type UpdateMsg = pubsub.Event[consumer.Update]

// RunDoneMsg is sent by the caller once consumer.Run returns. It ends the
// program even if the broker dropped the finished event.
type RunDoneMsg struct {
	Result consumer.Result
	Err    error
}

// Model holds the TUI state.
type Model struct {
	listener *pubsub.ContinuousListener[consumer.Update]
	logs     *log.LogListener
	cancel   context.CancelFunc
	bar      progress.Model

	url      string
	title    string
	format   string
	percent  float64
	rate     float64
	retries  int
	delaying bool
	waiting  bool
	message  string
	isError  bool
	lastLog  string

	result      *consumer.Result
	err         error
	done        bool
	interrupted bool
}

// New creates a model fed by listener. cancel is called when the user
// interrupts; it may be nil.
func New(listener *pubsub.ContinuousListener[consumer.Update], cancel context.CancelFunc) Model {
	return Model{
		listener: listener,
		cancel:   cancel,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
	}
}

// WithURL sets the URL shown until the title is known.
func (m Model) WithURL(url string) Model {
	m.url = url
	return m
}

// WithLogs shows the most recent debug log entry under the status lines.
// A nil listener (logging off) is ignored.
func (m Model) WithLogs(logs *log.LogListener) Model {
	m.logs = logs
	return m
}

// Init starts listening for updates.
func (m Model) Init() tea.Cmd {
	updates, logs := m.listen(), m.listenLogs()
	switch {
	case logs == nil:
		return updates
	case updates == nil:
		return logs
	}
	return tea.Batch(updates, logs)
}

func (m Model) listenLogs() tea.Cmd {
	if m.logs == nil || m.done {
		return nil
	}
	return m.logs.Listen()
}

func (m Model) listen() tea.Cmd {
	if m.listener == nil || m.done {
		return nil
	}
	return m.listener.Listen()
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.SetWidth(msg.Width), nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			log.Info(log.CatUI, "interrupted by user")
			if m.cancel != nil {
				m.cancel()
			}
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil

	case UpdateMsg:
		m = m.Apply(msg)
		if m.done {
			return m, tea.Quit
		}
		return m, m.listen()

	case log.LogEvent:
		m.lastLog = ansi.Truncate(strings.TrimSpace(msg.Payload), maxLogWidth, "…")
		return m, m.listenLogs()

	case RunDoneMsg:
		res := msg.Result
		m.result = &res
		if msg.Err != nil {
			m.err = msg.Err
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// Apply folds one broker event into the model.
func (m Model) Apply(ev UpdateMsg) Model {
	u := ev.Payload
	if ev.Type == pubsub.FinishedEvent || u.Result != nil {
		if u.Result != nil {
			res := *u.Result
			m.result = &res
		}
		m.err = u.Err
		m.done = true
		return m
	}
	if u.Event == nil {
		return m
	}

	e := u.Event
	switch e.Type {
	case lurch.EventVideoMeta:
		if e.Meta != nil {
			m.title = e.Meta.Title
		}
	case lurch.EventProgress:
		if p := e.Progress; p != nil {
			m.percent = clamp(p.Progress)
			m.rate = p.Rate
			m.retries = p.Retries
			m.delaying = p.Delaying
			m.waiting = p.Waiting
		}
	case lurch.EventFormat:
		if e.Format != nil {
			m.format = e.Format.Format
		}
	case lurch.EventInfo:
		if e.Info != nil {
			m.message = e.Info.Message
			m.isError = false
		}
	case lurch.EventError:
		if e.Error != nil {
			m.message = e.Error.Message
			m.isError = true
		}
	}
	return m
}

// SetWidth resizes the progress bar to fit a terminal of the given width.
func (m Model) SetWidth(width int) Model {
	w := width - 4
	if w > maxBarWidth {
		w = maxBarWidth
	}
	if w < 10 {
		w = 10
	}
	m.bar.Width = w
	return m
}

// Done reports whether the run has ended.
func (m Model) Done() bool { return m.done }

// Interrupted reports whether the user pressed ctrl+c.
func (m Model) Interrupted() bool { return m.interrupted }

// Result returns the final result, or nil while the run is in progress.
func (m Model) Result() *consumer.Result { return m.result }

// Err returns the error the run ended with.
func (m Model) Err() error { return m.err }

// View renders the download panel.
func (m Model) View() string {
	var b strings.Builder

	switch {
	case m.title != "":
		b.WriteString(titleStyle.Render(lurch.FormatTitle(m.title)))
	case m.url != "":
		b.WriteString(mutedStyle.Render("Waiting for " + m.url))
	default:
		b.WriteString(mutedStyle.Render("Waiting for lurch-dl"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%.1f MB/s", m.rate/1_000_000)
	if m.format != "" {
		b.WriteString(mutedStyle.Render("  " + m.format))
	}
	if flags := m.flagLine(); flags != "" {
		b.WriteString("  ")
		b.WriteString(warnStyle.Render(flags))
	}

	if m.message != "" {
		b.WriteString("\n")
		if m.isError {
			b.WriteString(errorStyle.Render("Error: " + m.message))
		} else {
			b.WriteString(mutedStyle.Render(m.message))
		}
	}

	if m.lastLog != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(m.lastLog))
	}

	if m.done {
		b.WriteString("\n\n")
		b.WriteString(m.summary())
	} else if !m.interrupted {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("ctrl+c to cancel"))
	}

	return frameStyle.Render(b.String()) + "\n"
}

func (m Model) flagLine() string {
	var parts []string
	if m.retries > 0 {
		parts = append(parts, fmt.Sprintf("retries: %d", m.retries))
	}
	if m.delaying {
		parts = append(parts, "delaying")
	}
	if m.waiting {
		parts = append(parts, "waiting")
	}
	return strings.Join(parts, ", ")
}

func (m Model) summary() string {
	if m.err != nil {
		return errorStyle.Render("Failed: " + m.err.Error())
	}
	if m.result == nil {
		return successStyle.Render("Finished")
	}
	r := m.result
	line := fmt.Sprintf("Exit status: %d  (%d chunks, %d bytes)", r.ExitCode, r.Chunks, r.Bytes)
	if r.ExitCode != 0 {
		return errorStyle.Render(line)
	}
	return successStyle.Render(line)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
