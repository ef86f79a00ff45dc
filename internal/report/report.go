package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/service"
)

// Shared styles for terminal output.
var (
	TitleStyle  = lipgloss.NewStyle().Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	statusColors = map[repository.SubscriptionStatus]lipgloss.Color{
		repository.StatusActive:    "2",
		repository.StatusZombie:    "3",
		repository.StatusCancelled: "1",
		repository.StatusExcluded:  "241",
	}
)

// StatusStyle colors a subscription status.
func StatusStyle(st repository.SubscriptionStatus) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(statusColors[st])
}

// MonthlyLabel formats a subscription's monthly cost, or "-" for unknown cadence.
func MonthlyLabel(s repository.Subscription) string {
	if m, ok := detection.MonthlyCost(s); ok {
		return detection.FormatCents(m.Round(0).IntPart())
	}
	return "-"
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// Subscriptions renders subscriptions sorted by monthly cost, highest first.
func Subscriptions(w io.Writer, subs []repository.Subscription) error {
	if len(subs) == 0 {
		_, err := fmt.Fprintln(w, MutedStyle.Render("No subscriptions yet."))
		return err
	}
	sorted := make([]repository.Subscription, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := detection.MonthlyCost(sorted[i])
		b, _ := detection.MonthlyCost(sorted[j])
		return a.GreaterThan(b)
	})

	t := newTable("ID", "Merchant", "Amount", "Every", "Monthly", "Last seen", "Status", "Category")
	for _, s := range sorted {
		freq := "?"
		if s.Frequency != nil {
			freq = string(*s.Frequency)
		}
		monthly := MonthlyLabel(s)
		status := string(s.Status)
		if s.UserAcknowledged && s.Status == repository.StatusActive {
			status += " (ack)"
		}
		t.Row(shortID(s.ID), s.Merchant, detection.FormatCents(s.AmountCents), freq, monthly,
			s.LastSeen.Format(time.DateOnly), StatusStyle(s.Status).Render(status), s.Category)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Costs renders the monthly cost summary.
func Costs(w io.Writer, sum detection.CostSummary) error {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Recurring spend: %s / month, %s / year",
		detection.FormatCents(sum.MonthlyCents), detection.FormatCents(sum.YearlyCents))))
	b.WriteString("\n")
	cats := make([]string, 0, len(sum.ByCategory))
	for c := range sum.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		name := c
		if name == "" {
			name = "Uncategorized"
		}
		fmt.Fprintf(&b, "  %-20s %s\n", name, detection.FormatCents(sum.ByCategory[c]))
	}
	if sum.UnknownCadence > 0 {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  %d subscription(s) with unknown cadence not counted", sum.UnknownCadence)))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Alerts renders alerts newest first.
func Alerts(w io.Writer, alerts []service.AlertView) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(w, MutedStyle.Render("No alerts."))
		return err
	}
	t := newTable("ID", "Type", "Message", "Raised", "State")
	for _, a := range alerts {
		state := "open"
		switch {
		case a.Dismissed:
			state = "dismissed"
		case a.ResolvedAt != nil:
			state = "resolved"
		}
		t.Row(shortID(a.ID), string(a.Type), a.Message, a.CreatedAt.Format(time.DateOnly), state)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Run renders a detection report.
func Run(w io.Writer, r detection.Report) error {
	var b strings.Builder
	scope := r.Scope
	if scope == "" {
		scope = "all accounts"
	}
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Detection run %s (%s)", r.AsOf, scope)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  transactions %d, skipped %d, series %d\n", r.Transactions, r.Skipped, r.Series)
	fmt.Fprintf(&b, "  subscriptions: %d new, %d updated\n", r.NewSubscriptions, r.UpdatedSubscriptions)
	fmt.Fprintf(&b, "  alerts: %d created, %d updated, %d resolved, %d suppressed\n",
		r.AlertsCreated, r.AlertsUpdated, r.AlertsResolved, r.AlertsSuppressed)
	for _, t := range r.Transitions {
		fmt.Fprintf(&b, "  %s: %s -> %s (%s)\n", t.Merchant, t.From, t.To, t.Detector)
	}
	if len(r.Conflicts) > 0 {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  %d subscription(s) changed by you during the run were left as you set them", len(r.Conflicts))))
		b.WriteString("\n")
	}
	for _, f := range r.Failures {
		b.WriteString(WarnStyle.Render(fmt.Sprintf("  detector %s failed: %s", f.Detector, f.Error)))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
