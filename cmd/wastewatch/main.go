package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/config"
	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/logger"
	"github.com/jask/wastewatch/internal/service"
)

// app holds everything a subcommand needs.
type app struct {
	cfg config.Config
	log *zap.Logger
	db  *sql.DB

	ledger   *service.LedgerService
	detect   *service.DetectionService
	subs     *service.SubscriptionService
	alerts   *service.AlertService
	receipts *service.ReceiptService
	matcher  *service.ReceiptMatcher
	maint    *service.MaintenanceService
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"migrate":        {"apply schema migrations", cmdMigrate},
	"seed":           {"load a generated demo ledger", cmdSeed},
	"import":         {"import ledger entries from a JSON or CSV file", cmdImport},
	"archive":        {"hide a transaction from detection", cmdArchive},
	"categorize":     {"set a transaction's category", cmdCategorize},
	"tag":            {"add or remove transaction tags", cmdTag},
	"run":            {"run waste detection", cmdRun},
	"subscriptions":  {"list subscriptions", cmdSubscriptions},
	"costs":          {"show recurring spend", cmdCosts},
	"ack":            {"acknowledge a subscription", actionCmd(detection.ActionAcknowledge)},
	"cancel":         {"mark a subscription cancelled", actionCmd(detection.ActionCancel)},
	"exclude":        {"exclude a subscription from detection", actionCmd(detection.ActionExclude)},
	"reset":          {"return a subscription to active", actionCmd(detection.ActionReset)},
	"alerts":         {"list alerts", cmdAlerts},
	"dismiss":        {"dismiss an alert", cmdDismiss},
	"delete-alert":   {"delete an alert so it can be raised again", cmdDeleteAlert},
	"add-receipt":    {"record an itemized receipt", cmdAddReceipt},
	"match-receipts": {"match pending receipts to transactions", cmdMatchReceipts},
	"decide-match":   {"confirm or reject a receipt match", cmdDecideMatch},
	"prune":          {"remove old closed alerts", cmdPrune},
	"wipe":           {"delete all data", cmdWipe},
	"review":         {"browse subscriptions and open alerts interactively", cmdReview},
	"serve":          {"serve the HTTP API with scheduled detection", cmdServe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes one subcommand and returns the process exit code. Every
// deferred cleanup has run by the time it returns.
func run(args []string, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	a, err := bootstrap(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.db.Close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		log.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: wastewatch <command> [flags]")
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", n, commands[n].usage)
	}
}

func bootstrap(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	engine := detection.NewEngine(cfg.Detection)
	detect := service.NewDetectionService(db, engine, log)
	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		ledger:   &service.LedgerService{DB: db, Log: log, Detection: detect, RunAfterImport: cfg.Detection.RunAfterImport},
		detect:   detect,
		subs:     &service.SubscriptionService{DB: db, Log: log},
		alerts:   &service.AlertService{DB: db},
		receipts: &service.ReceiptService{DB: db},
		matcher: &service.ReceiptMatcher{
			DB:                    db,
			Log:                   log,
			DateWindowDays:        cfg.Receipts.DateWindowDays,
			MinSimilarity:         cfg.Receipts.MinSimilarity,
			AutoConfirmSimilarity: cfg.Receipts.AutoConfirmSimilarity,
		},
		maint: &service.MaintenanceService{DB: db, Log: log},
	}, nil
}
