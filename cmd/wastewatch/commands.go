package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/report"
	"github.com/jask/wastewatch/internal/service"
	"github.com/jask/wastewatch/internal/testdata"
)

func cmdMigrate(_ context.Context, a *app, _ []string) error {
	v, dirty, err := database.SchemaVersion(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (dirty=%v) at %s\n", v, dirty, a.cfg.Database.Path)
	return nil
}

func cmdSeed(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	seed := fs.Int64("seed", 1, "random seed")
	months := fs.Int("months", 8, "months of history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data := testdata.Generate(*seed, time.Now(), *months)
	res, err := a.ledger.Record(ctx, data.Entries, time.UTC)
	if err != nil {
		return err
	}
	for _, r := range data.Receipts {
		if _, err := a.receipts.Add(ctx, r); err != nil {
			return err
		}
	}
	fmt.Printf("seeded %d entries (%d skipped) and %d receipts\n", res.Imported, res.Skipped, len(data.Receipts))
	if res.Report != nil {
		return report.Run(os.Stdout, *res.Report)
	}
	return nil
}

func cmdImport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	tzName := fs.String("tz", "Local", "timezone entry dates are recorded in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: wastewatch import [-tz zone] <file.json|file.csv>")
	}
	tz, err := time.LoadLocation(*tzName)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var res service.ImportResult
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		res, err = a.ledger.ImportJSON(ctx, f, tz)
	case ".csv":
		res, err = a.ledger.ImportCSV(ctx, f, tz)
	default:
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	fmt.Printf("imported %d, skipped %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %v\n", e)
	}
	if res.Report != nil {
		return report.Run(os.Stdout, *res.Report)
	}
	return nil
}

func cmdArchive(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	restore := fs.Bool("restore", false, "restore instead of archive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneID("archive", fs.Args())
	if err != nil {
		return err
	}
	return a.ledger.Archive(ctx, id, !*restore)
}

func cmdCategorize(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: wastewatch categorize <transaction-id> <category|\"\">")
	}
	return a.ledger.Categorize(ctx, args[0], args[1])
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func cmdTag(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	add := fs.String("add", "", "comma separated tags to attach")
	remove := fs.String("remove", "", "comma separated tags to detach")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneID("tag", fs.Args())
	if err != nil {
		return err
	}
	return a.ledger.Retag(ctx, id, splitList(*add), splitList(*remove))
}

func cmdRun(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	scope := fs.String("account", "", "restrict the run to one account id")
	asOf := fs.String("as-of", "", "evaluate as of this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts := service.RunOptions{Scope: *scope}
	if *asOf != "" {
		d, err := time.Parse(time.DateOnly, *asOf)
		if err != nil {
			return fmt.Errorf("as-of: %w", err)
		}
		opts.AsOf = d
	}
	r, err := a.detect.Run(ctx, opts)
	if err != nil {
		return err
	}
	return report.Run(os.Stdout, r)
}

func subscriptionFilters(fs *flag.FlagSet) (*string, *string) {
	return fs.String("account", "", "account id"), fs.String("status", "", "active, zombie, cancelled or excluded")
}

func cmdSubscriptions(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("subscriptions", flag.ContinueOnError)
	account, status := subscriptionFilters(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	subs, err := a.subs.List(ctx, repository.SubscriptionFilters{
		AccountID: *account,
		Grouped:   a.cfg.Detection.GroupAcrossAccounts,
		Status:    repository.SubscriptionStatus(*status),
	})
	if err != nil {
		return err
	}
	return report.Subscriptions(os.Stdout, subs)
}

func cmdCosts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("costs", flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sum, err := a.subs.Costs(ctx, repository.SubscriptionFilters{AccountID: *account, Grouped: a.cfg.Detection.GroupAcrossAccounts})
	if err != nil {
		return err
	}
	return report.Costs(os.Stdout, sum)
}

func oneID(name string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("usage: wastewatch %s <id>", name)
	}
	return strings.TrimSpace(args[0]), nil
}

func actionCmd(action detection.Action) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		id, err := oneID(string(action), args)
		if err != nil {
			return err
		}
		sub, err := a.subs.Apply(ctx, id, action)
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", sub.Merchant, sub.Status)
		return nil
	}
}

func cmdAlerts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("alerts", flag.ContinueOnError)
	all := fs.Bool("all", false, "include dismissed and resolved alerts")
	typ := fs.String("type", "", "alert type")
	sub := fs.String("subscription", "", "subscription id")
	limit := fs.Int("limit", 50, "maximum alerts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	alerts, err := a.alerts.List(ctx, repository.AlertFilters{
		OpenOnly:       !*all,
		Type:           repository.AlertType(*typ),
		SubscriptionID: *sub,
		Limit:          *limit,
	})
	if err != nil {
		return err
	}
	return report.Alerts(os.Stdout, alerts)
}

func cmdDismiss(ctx context.Context, a *app, args []string) error {
	id, err := oneID("dismiss", args)
	if err != nil {
		return err
	}
	return a.alerts.Dismiss(ctx, id)
}

func cmdDeleteAlert(ctx context.Context, a *app, args []string) error {
	id, err := oneID("delete-alert", args)
	if err != nil {
		return err
	}
	return a.alerts.Delete(ctx, id)
}

func cmdAddReceipt(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add-receipt", flag.ContinueOnError)
	merchant := fs.String("merchant", "", "merchant on the receipt")
	day := fs.String("date", "", "receipt date (YYYY-MM-DD)")
	total := fs.String("total", "", "pre-tip total in dollars")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := time.Parse(time.DateOnly, *day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(*total))
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}
	rc, err := a.receipts.Add(ctx, service.ReceiptInput{
		Merchant:   *merchant,
		Date:       d,
		TotalCents: amt.Shift(2).Round(0).IntPart(),
		Source:     "cli",
	})
	if err != nil {
		return err
	}
	fmt.Printf("receipt %s recorded\n", rc.ID)
	return nil
}

func cmdMatchReceipts(ctx context.Context, a *app, _ []string) error {
	res, err := a.matcher.MatchPending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("proposed %d, auto-confirmed %d, unmatched %d\n", res.Proposed, res.AutoConfirmed, res.Unmatched)
	return nil
}

func cmdDecideMatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("decide-match", flag.ContinueOnError)
	reject := fs.Bool("reject", false, "reject instead of confirm")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneID("decide-match", fs.Args())
	if err != nil {
		return err
	}
	return a.matcher.Decide(ctx, id, !*reject)
}

func cmdPrune(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	days := fs.Int("days", a.cfg.Retention.AlertDays, "retention in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := a.maint.PruneAlerts(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d alerts\n", n)
	return nil
}

func cmdWipe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wipe", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm deleting every row")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to wipe without -yes")
	}
	if err := a.maint.Reset(ctx); err != nil {
		return err
	}
	a.log.Info("database wiped", zap.String("path", a.cfg.Database.Path))
	return database.SeedDefaults(ctx, a.db)
}
