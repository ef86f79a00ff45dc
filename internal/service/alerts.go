package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

// AlertView is an alert with its payload decoded into the detector's type.
type AlertView struct {
	repository.Alert
	Details detection.Payload
}

// AlertService reads and closes alerts.
type AlertService struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s *AlertService) List(ctx context.Context, f repository.AlertFilters) ([]AlertView, error) {
	alerts, err := repository.NewAlertRepo(s.DB).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		v, err := view(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (AlertView, error) {
	a, err := repository.NewAlertRepo(s.DB).Get(ctx, id)
	if err != nil {
		return AlertView{}, fmt.Errorf("get alert: %w", err)
	}
	if a == nil {
		return AlertView{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return view(*a)
}

// Dismiss closes an alert. Detection will not raise the same finding again
// while the dismissed row is retained.
func (s *AlertService) Dismiss(ctx context.Context, id string) error {
	ok, err := repository.NewAlertRepo(s.DB).Dismiss(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}
	if !ok {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes an alert outright; an ongoing finding will be raised again.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	ok, err := repository.NewAlertRepo(s.DB).Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if !ok {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *AlertService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return database.Now()
}

func view(a repository.Alert) (AlertView, error) {
	p, err := detection.DecodePayload(a.Type, a.Payload)
	if err != nil {
		return AlertView{}, fmt.Errorf("alert %s: %w", a.ID, err)
	}
	return AlertView{Alert: a, Details: p}, nil
}
