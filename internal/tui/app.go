package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/report"
	"github.com/jask/wastewatch/internal/service"
)

// App is the interactive review screen: subscriptions on one view, open
// alerts on the other, with the user actions bound to keys.
type App struct {
	ctx      context.Context
	services Services
	filters  repository.SubscriptionFilters
	now      func() time.Time

	state       appState
	subs        []repository.Subscription
	alerts      []service.AlertView
	subCursor   int
	alertCursor int
	modal       modalState
	pending     detection.Action
	status      string
}

type Services struct {
	Subscriptions *service.SubscriptionService
	Alerts        *service.AlertService
	Detection     *service.DetectionService
}

type appState string

const (
	viewSubscriptions appState = "subscriptions"
	viewAlerts        appState = "alerts"
)

type modalState string

const (
	modalNone          modalState = ""
	modalConfirmAction modalState = "confirmAction"
)

// New builds the review model. now sets the as-of date of runs started from
// the screen; nil means the wall clock.
func New(ctx context.Context, services Services, filters repository.SubscriptionFilters, now func() time.Time) *App {
	if now == nil {
		now = time.Now
	}
	return &App{
		ctx:      ctx,
		services: services,
		filters:  filters,
		now:      now,
		state:    viewSubscriptions,
	}
}

// Run shows the review screen until the user quits or ctx ends.
func Run(ctx context.Context, services Services, filters repository.SubscriptionFilters) error {
	p := tea.NewProgram(New(ctx, services, filters, nil), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadSubscriptions(), a.loadAlerts())
}

func (a *App) loadSubscriptions() tea.Cmd {
	return func() tea.Msg {
		list, err := a.services.Subscriptions.List(a.ctx, a.filters)
		if err != nil {
			return errMsg{err}
		}
		return subscriptionsMsg(list)
	}
}

func (a *App) loadAlerts() tea.Cmd {
	return func() tea.Msg {
		list, err := a.services.Alerts.List(a.ctx, repository.AlertFilters{OpenOnly: true})
		if err != nil {
			return errMsg{err}
		}
		return alertsMsg(list)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		return a.handleKey(m)
	case subscriptionsMsg:
		a.subs = []repository.Subscription(m)
		if a.subCursor >= len(a.subs) {
			a.subCursor = max(len(a.subs)-1, 0)
		}
	case alertsMsg:
		a.alerts = []service.AlertView(m)
		if a.alertCursor >= len(a.alerts) {
			a.alertCursor = max(len(a.alerts)-1, 0)
		}
	case changedMsg:
		a.status = string(m)
		return a, tea.Batch(a.loadSubscriptions(), a.loadAlerts())
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab":
		if a.state == viewSubscriptions {
			a.state = viewAlerts
		} else {
			a.state = viewSubscriptions
		}
		a.status = ""
	case "1":
		a.state = viewSubscriptions
	case "2":
		a.state = viewAlerts
	case "up", "k":
		if a.state == viewSubscriptions && a.subCursor > 0 {
			a.subCursor--
		}
		if a.state == viewAlerts && a.alertCursor > 0 {
			a.alertCursor--
		}
	case "down", "j":
		if a.state == viewSubscriptions && a.subCursor < len(a.subs)-1 {
			a.subCursor++
		}
		if a.state == viewAlerts && a.alertCursor < len(a.alerts)-1 {
			a.alertCursor++
		}
	case "r":
		a.status = "running detection..."
		return a, a.runCmd()
	case "a":
		if sub := a.selectedSubscription(); sub != nil {
			return a, a.actionCmd(sub.ID, detection.ActionAcknowledge)
		}
	case "c":
		a.confirm(detection.ActionCancel)
	case "x":
		a.confirm(detection.ActionExclude)
	case "z":
		a.confirm(detection.ActionReset)
	case "d":
		if a.state == viewAlerts && len(a.alerts) > 0 {
			return a, a.dismissCmd(a.alerts[a.alertCursor].ID)
		}
	}
	return a, nil
}

func (a *App) confirm(action detection.Action) {
	if a.selectedSubscription() == nil {
		return
	}
	a.pending = action
	a.modal = modalConfirmAction
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "y", "enter":
		a.modal = modalNone
		if sub := a.selectedSubscription(); sub != nil {
			return a, a.actionCmd(sub.ID, a.pending)
		}
	case "n", "esc":
		a.modal = modalNone
		a.status = "cancelled"
	}
	return a, nil
}

func (a *App) selectedSubscription() *repository.Subscription {
	if a.state != viewSubscriptions || len(a.subs) == 0 {
		return nil
	}
	return &a.subs[a.subCursor]
}

// commands
func (a *App) actionCmd(id string, action detection.Action) tea.Cmd {
	return func() tea.Msg {
		sub, err := a.services.Subscriptions.Apply(a.ctx, id, action)
		if err != nil {
			return errMsg{err}
		}
		return changedMsg(fmt.Sprintf("%s: %s, now %s", sub.Merchant, action, sub.Status))
	}
}

func (a *App) dismissCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Alerts.Dismiss(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return changedMsg("alert dismissed")
	}
}

func (a *App) runCmd() tea.Cmd {
	return func() tea.Msg {
		if a.services.Detection == nil {
			return errMsg{fmt.Errorf("detection not configured")}
		}
		r, err := a.services.Detection.Run(a.ctx, service.RunOptions{Scope: a.filters.AccountID, AsOf: a.now()})
		if err != nil {
			return errMsg{err}
		}
		return changedMsg(fmt.Sprintf("detection: %d created, %d resolved, %d status changes",
			r.AlertsCreated, r.AlertsResolved, len(r.Transitions)))
	}
}

// messages
type subscriptionsMsg []repository.Subscription

type alertsMsg []service.AlertView

// changedMsg reports a completed write; the lists are reloaded after it.
type changedMsg string

type errMsg struct{ error }

var (
	cursorStyle = lipgloss.NewStyle().Bold(true)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (a *App) View() string {
	var body string
	if a.state == viewAlerts {
		body = a.renderAlerts()
	} else {
		body = a.renderSubscriptions()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	if a.status != "" {
		body += "\n" + a.status
	}
	return body
}

func (a *App) renderSubscriptions() string {
	var b strings.Builder
	b.WriteString(report.TitleStyle.Render(fmt.Sprintf("Subscriptions (%d)", len(a.subs))))
	b.WriteString("\n")
	if len(a.subs) == 0 {
		b.WriteString(report.MutedStyle.Render("  none yet, import a ledger and press r"))
		b.WriteString("\n")
	}
	for i, s := range a.subs {
		marker := " "
		if i == a.subCursor {
			marker = "▶"
		}
		freq := "?"
		if s.Frequency != nil {
			freq = string(*s.Frequency)
		}
		line := fmt.Sprintf("%s %-24s %-10s %9s %-8s %9s/mo  last %s", marker, s.Merchant,
			report.StatusStyle(s.Status).Render(string(s.Status)),
			detection.FormatCents(s.AmountCents), freq, report.MonthlyLabel(s), s.LastSeen.Format(time.DateOnly))
		if i == a.subCursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(report.MutedStyle.Render("[a] Acknowledge  [c] Cancel  [x] Exclude  [z] Reset  [r] Run  [tab] Alerts  [q] Quit"))
	return b.String()
}

func (a *App) renderAlerts() string {
	var b strings.Builder
	b.WriteString(report.TitleStyle.Render(fmt.Sprintf("Open alerts (%d)", len(a.alerts))))
	b.WriteString("\n")
	if len(a.alerts) == 0 {
		b.WriteString(report.MutedStyle.Render("  nothing to review"))
		b.WriteString("\n")
	}
	for i, al := range a.alerts {
		marker := " "
		if i == a.alertCursor {
			marker = "▶"
		}
		line := fmt.Sprintf("%s %-18s %s  %s", marker, al.Type, al.CreatedAt.Format(time.DateOnly), al.Message)
		if i == a.alertCursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(report.MutedStyle.Render("[d] Dismiss  [r] Run  [tab] Subscriptions  [q] Quit"))
	return b.String()
}

func (a *App) renderModal() string {
	sub := a.selectedSubscription()
	if sub == nil {
		return ""
	}
	verb := map[detection.Action]string{
		detection.ActionCancel:  "Mark %s as cancelled?",
		detection.ActionExclude: "Exclude %s from detection?",
		detection.ActionReset:   "Reset %s to active and forget acknowledgements?",
	}[a.pending]
	if verb == "" {
		verb = "Apply to %s?"
	}
	return modalStyle.Render(report.TitleStyle.Render(fmt.Sprintf(verb, sub.Merchant)) + "\n[y] Yes  [n] No")
}
