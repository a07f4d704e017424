package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/lookforge/internal/config"
	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/metrics"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/pubsub"
	"github.com/agbru/lookforge/internal/sysmon"
)

// Deps are the services the dashboard drives.
type Deps struct {
	Runner *pipeline.Runner
	// Events delivers the session's progress snapshots. Nil disables the
	// live chart; attempts and the outcome are still shown.
	Events  pubsub.Subscriber
	Memory  *metrics.MemoryCollector
	Sampler *sysmon.Sampler
}

// ExecutionState holds the execution-related fields of a dashboard session.
type ExecutionState struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	sessionID  string
	done       bool
	exitCode   int
	observed   *format.ProgressWithETA
}

// LayoutManager holds terminal dimensions and provides layout calculations.
type LayoutManager struct {
	width  int
	height int
}

// bodyHeight returns the available height for the main body panels.
func (l LayoutManager) bodyHeight() int {
	return max(l.height-headerHeight-footerHeight, minBodyHeight)
}

// logsWidth returns the width allocated to the logs panel.
func (l LayoutManager) logsWidth() int {
	return l.width * LogsPanelWidthPercent / 100
}

// rightWidth returns the width allocated to the right column (metrics + chart).
func (l LayoutManager) rightWidth() int {
	return l.width - l.logsWidth()
}

// metricsHeight returns the height allocated to the metrics panel.
func (l LayoutManager) metricsHeight() int {
	return min(MetricsPanelHeight, l.bodyHeight()/2)
}

// chartHeight returns the height allocated to the chart panel.
func (l LayoutManager) chartHeight() int {
	return l.bodyHeight() - l.metricsHeight()
}

// Model is the root bubbletea model of the studio dashboard.
type Model struct {
	header  HeaderModel
	logs    LogsModel
	metrics MetricsModel
	chart   ChartModel
	footer  FooterModel

	keymap KeyMap

	ExecutionState
	LayoutManager

	parentCtx context.Context
	deps      Deps
	config    config.AppConfig
	ref       *programRef
	paused    bool
}

// NewModel creates a new dashboard model for the job described by cfg.
func NewModel(parentCtx context.Context, deps Deps, cfg config.AppConfig, version string) Model {
	if deps.Memory == nil {
		deps.Memory = metrics.NewMemoryCollector()
	}
	if deps.Sampler == nil {
		deps.Sampler = sysmon.NewSampler()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	logs := NewLogsModel()
	logs.AddExecutionConfig(cfg)

	return Model{
		header:  NewHeaderModel(version),
		logs:    logs,
		metrics: NewMetricsModel(),
		chart:   NewChartModel(),
		footer:  NewFooterModel(),
		keymap:  DefaultKeyMap(),
		ExecutionState: ExecutionState{
			ctx:      ctx,
			cancel:   cancel,
			exitCode: apperrors.ExitSuccess,
			observed: format.NewProgressWithETA(1),
		},
		parentCtx: parentCtx,
		deps:      deps,
		config:    cfg,
		ref:       &programRef{},
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return m.start()
}

func (m Model) start() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		startGenerationCmd(m.ctx, m.ref, m.deps, m.config.Job(), m.generation),
		watchContextCmd(m.ctx, m.generation),
	)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case SessionStartedMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.sessionID = msg.SessionID
		m.header.SetSession(msg.SessionID)
		m.logs.AddSessionStarted(msg)
		return m, nil

	case SnapshotMsg:
		snap := msg.Snapshot
		if snap.SessionID != m.sessionID || m.paused {
			return m, nil
		}
		m.logs.AddSnapshot(snap)
		var steps float64
		if snap.TotalSegments > 0 {
			steps = float64(snap.CurrentSegment) / float64(snap.TotalSegments)
		}
		percent := float64(snap.PercentComplete) / 100
		_, observedETA := m.observed.UpdateWithETA(0, steps)
		eta := time.Duration(snap.RemainingSeconds) * time.Second
		if eta == 0 && !snap.Status.Terminal() {
			eta = observedETA
		}
		m.chart.ObserveSnapshot(snap, eta)
		m.metrics.UpdateProgress(percent)
		return m, nil

	case AttemptMsg:
		m.logs.AddAttempt(msg)
		m.metrics.RecordAttempt(msg)
		m.chart.ObserveAttempt(msg)
		return m, nil

	case OutcomeMsg:
		m.logs.AddOutcome(msg)
		return m, nil

	case ErrorMsg:
		m.logs.AddError(msg)
		m.footer.SetError(true)
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		if !m.paused {
			return m, tea.Batch(m.sampleMemStatsCmd(), m.sampleSysStatsCmd(), tickCmd())
		}
		return m, tickCmd()

	case MemStatsMsg:
		m.metrics.UpdateMemStats(msg)
		return m, nil

	case SysStatsMsg:
		m.chart.UpdateSysStats(msg.CPUPercent, msg.MemPercent)
		return m, nil

	case GenerationCompleteMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.done = true
		m.exitCode = msg.ExitCode
		m.header.SetDone()
		m.chart.SetDone(m.header.Elapsed(), msg.ExitCode != apperrors.ExitSuccess)
		m.footer.SetDone(true)
		m.footer.SetError(msg.ExitCode != apperrors.ExitSuccess)
		return m, nil

	case ContextCancelledMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.done = true
		m.header.SetDone()
		m.footer.SetDone(true)
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Pause):
		m.paused = !m.paused
		m.footer.SetPaused(m.paused)
		return m, nil

	case key.Matches(msg, m.keymap.Reset):
		if m.cancel != nil {
			m.cancel()
		}

		// A regeneration is a new session with its own id.
		m.generation++
		ctx, cancel := context.WithCancel(m.parentCtx)
		m.ctx = ctx
		m.cancel = cancel
		m.sessionID = ""
		m.observed = format.NewProgressWithETA(1)

		m.header.Reset()
		m.logs.Reset()
		m.logs.AddExecutionConfig(m.config)
		m.chart.Reset()
		m.metrics = NewMetricsModel()
		m.metrics.SetSize(m.rightWidth(), m.metricsHeight())
		m.footer.SetDone(false)
		m.footer.SetError(false)
		m.footer.SetPaused(false)
		m.done = false
		m.paused = false
		m.exitCode = apperrors.ExitSuccess

		return m, m.start()

	case key.Matches(msg, m.keymap.Up), key.Matches(msg, m.keymap.Down),
		key.Matches(msg, m.keymap.PageUp), key.Matches(msg, m.keymap.PageDown):
		m.logs.Update(msg)
		return m, nil
	}

	return m, nil
}

// View renders the entire dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	rightCol := lipgloss.JoinVertical(lipgloss.Left, m.metrics.View(), m.chart.View())
	logs := m.logs.renderToHeight(lipgloss.Height(rightCol))
	body := lipgloss.JoinHorizontal(lipgloss.Top, logs, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, m.footer.View())
}

// Layout constants for the dashboard.
const (
	headerHeight          = 1
	footerHeight          = 1
	minBodyHeight         = 4
	LogsPanelWidthPercent = 60
	MetricsPanelHeight    = 7
)

func (m *Model) layoutPanels() {
	m.header.SetWidth(m.width)
	m.footer.SetWidth(m.width)
	m.logs.SetSize(m.logsWidth(), m.bodyHeight())
	m.metrics.SetSize(m.rightWidth(), m.metricsHeight())
	m.chart.SetSize(m.rightWidth(), m.chartHeight())
}

// Run is the public entry point for the dashboard mode.
// It creates the bubbletea program, runs it, and returns the exit code.
func Run(ctx context.Context, deps Deps, cfg config.AppConfig, version string) int {
	// Rebuild styles from the current ui theme (set by app.Run via InitTheme).
	initTUIStyles()

	model := NewModel(ctx, deps, cfg, version)
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.ref.SetProgram(p)

	finalModel, err := p.Run()
	if err != nil {
		if apperrors.IsContextError(err) {
			return apperrors.ExitErrorCanceled
		}
		return apperrors.ExitErrorGeneric
	}

	if m, ok := finalModel.(Model); ok {
		m.cancel()
		return m.exitCode
	}
	return apperrors.ExitSuccess
}

// startGenerationCmd returns a tea.Cmd that runs one generation.
func startGenerationCmd(ctx context.Context, ref *programRef, deps Deps, job pipeline.Job, gen uint64) tea.Cmd {
	return func() tea.Msg {
		if deps.Runner == nil {
			return GenerationCompleteMsg{ExitCode: apperrors.ExitErrorConfig, Generation: gen}
		}
		return runGeneration(ctx, ref, deps.Runner, deps.Events, job, gen)
	}
}

// tickCmd returns a command that sends a TickMsg after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sampleMemStatsCmd reads runtime memory stats and returns a MemStatsMsg.
func (m Model) sampleMemStatsCmd() tea.Cmd {
	collector := m.deps.Memory
	return func() tea.Msg {
		s := collector.Snapshot()
		return MemStatsMsg{
			Alloc:        s.HeapAlloc,
			HeapInuse:    s.HeapInuse,
			NumGC:        s.NumGC,
			PauseTotalNs: s.PauseTotalNs,
			NumGoroutine: s.Goroutines,
		}
	}
}

// sampleSysStatsCmd reads host CPU and memory usage and returns a SysStatsMsg.
func (m Model) sampleSysStatsCmd() tea.Cmd {
	sampler, ctx := m.deps.Sampler, m.ctx
	return func() tea.Msg {
		s := sampler.Sample(ctx)
		return SysStatsMsg{
			CPUPercent: s.CPUPercent,
			MemPercent: s.MemPercent,
		}
	}
}

// watchContextCmd waits for context cancellation and sends a message.
func watchContextCmd(ctx context.Context, gen uint64) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return ContextCancelledMsg{Err: ctx.Err(), Generation: gen}
	}
}
