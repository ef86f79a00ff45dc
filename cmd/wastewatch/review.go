package main

import (
	"context"
	"flag"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/tui"
)

func cmdReview(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	account, status := subscriptionFilters(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return tui.Run(ctx, tui.Services{
		Subscriptions: a.subs,
		Alerts:        a.alerts,
		Detection:     a.detect,
	}, repository.SubscriptionFilters{
		AccountID: *account,
		Grouped:   a.cfg.Detection.GroupAcrossAccounts,
		Status:    repository.SubscriptionStatus(*status),
	})
}
