package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// env wires every service against one temp database with a fixed clock.
type env struct {
	ctx      context.Context
	db       *sql.DB
	now      time.Time
	ledger   *LedgerService
	detect   *DetectionService
	subs     *SubscriptionService
	alerts   *AlertService
	receipts *ReceiptService
	matcher  *ReceiptMatcher
	maint    *MaintenanceService
}

func newEnv(t *testing.T, opts ...detection.Option) *env {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	e := &env{ctx: ctx, db: openTestDB(t), now: date("2024-08-01")}
	clock := func() time.Time { return e.now }
	engine := detection.NewEngine(detection.Config{}, append([]detection.Option{detection.WithClock(clock)}, opts...)...)
	log := zap.NewNop()

	e.detect = NewDetectionService(e.db, engine, log)
	e.ledger = &LedgerService{DB: e.db, Log: log}
	e.subs = &SubscriptionService{DB: e.db, Log: log, Now: clock}
	e.alerts = &AlertService{DB: e.db, Now: clock}
	e.receipts = &ReceiptService{DB: e.db}
	e.matcher = &ReceiptMatcher{DB: e.db, Log: log, DateWindowDays: 3, MinSimilarity: 0.6, AutoConfirmSimilarity: 0.9, Now: clock}
	e.maint = &MaintenanceService{DB: e.db, Log: log, Now: clock}
	return e
}

func entry(day, amount, merchant, category string, tags ...string) Entry {
	return Entry{
		Account:     "Everyday",
		Date:        day,
		PostedDate:  day,
		Amount:      amount,
		Description: fmt.Sprintf("%s %s", merchant, day),
		Merchant:    merchant,
		Category:    category,
		Tags:        tags,
	}
}

// monthly returns n charges on the same day of consecutive months.
func monthly(first string, n int, amount, merchant, category string) []Entry {
	start := date(first)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entry(start.AddDate(0, i, 0).Format(time.DateOnly), amount, merchant, category))
	}
	return out
}

func (e *env) record(t *testing.T, entries ...Entry) {
	t.Helper()
	res, err := e.ledger.Record(e.ctx, entries, time.UTC)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
}

func (e *env) run(t *testing.T, asOf string) detection.Report {
	t.Helper()
	r, err := e.detect.Run(e.ctx, RunOptions{AsOf: date(asOf)})
	require.NoError(t, err)
	return r
}

func (e *env) subscription(t *testing.T, merchant string) repository.Subscription {
	t.Helper()
	subs, err := e.subs.List(e.ctx, repository.SubscriptionFilters{})
	require.NoError(t, err)
	for _, s := range subs {
		if s.Merchant == merchant {
			return s
		}
	}
	t.Fatalf("no subscription for %s", merchant)
	return repository.Subscription{}
}

func (e *env) openAlerts(t *testing.T, typ repository.AlertType) []AlertView {
	t.Helper()
	views, err := e.alerts.List(e.ctx, repository.AlertFilters{OpenOnly: true, Type: typ})
	require.NoError(t, err)
	return views
}

func (e *env) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRowContext(e.ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
