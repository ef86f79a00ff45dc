package service

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

// Entry is one normalized ledger line. Merchant, category and tags are
// already resolved by the importer. Amount is in dollars; expenses are negative.
type Entry struct {
	Account     string   `json:"account"`
	ExternalID  string   `json:"external_id,omitempty"`
	Date        string   `json:"date"`
	PostedDate  string   `json:"posted_date,omitempty"`
	Amount      string   `json:"amount"`
	Description string   `json:"description"`
	Merchant    string   `json:"merchant,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []error
	// Report is set when a detection run followed the import.
	Report *detection.Report
}

// LedgerService records ledger entries with import-hash dedup.
type LedgerService struct {
	DB  *sql.DB
	Log *zap.Logger
	// Detection, when set with RunAfterImport, runs after any import that added rows.
	Detection      *DetectionService
	RunAfterImport bool
}

// Record stores entries in one transaction. Rows whose source hash or
// external id already exists for the account are skipped; malformed rows are
// reported in Errors and do not abort the import.
func (s *LedgerService) Record(ctx context.Context, entries []Entry, tz *time.Location) (ImportResult, error) {
	res := ImportResult{}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		txns := repository.NewTransactionRepo(tx)
		accounts := repository.NewAccountRepo(tx)
		categories := repository.NewCategoryRepo(tx)
		tags := repository.NewTagRepo(tx)
		seen := make(map[string]repository.Account)

		for i, e := range entries {
			line := i + 1
			t, err := normalizeEntry(e, tz)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("entry %d: %w", line, err))
				continue
			}
			acct, ok := seen[e.Account]
			if !ok {
				acct, err = accountForName(ctx, accounts, e.Account)
				if err != nil {
					res.Errors = append(res.Errors, fmt.Errorf("entry %d account: %w", line, err))
					continue
				}
				seen[e.Account] = acct
			}
			t.AccountID = acct.ID
			t.SourceHash = hashSource(acct.ID, t.Date.Format(time.DateOnly), fmt.Sprintf("%d", t.AmountCents), t.RawDescription)
			if name := strings.TrimSpace(e.Category); name != "" {
				cat, err := categories.EnsureByName(ctx, name)
				if err != nil {
					return fmt.Errorf("ensure category %q: %w", name, err)
				}
				t.CategoryID = &cat.ID
			}
			if err := txns.Insert(ctx, t); err != nil {
				if strings.Contains(err.Error(), "UNIQUE") {
					res.Skipped++
					continue
				}
				return fmt.Errorf("entry %d insert: %w", line, err)
			}
			for _, name := range e.Tags {
				if strings.TrimSpace(name) == "" {
					continue
				}
				tag, err := tags.Ensure(ctx, name)
				if err != nil {
					return fmt.Errorf("ensure tag %q: %w", name, err)
				}
				if err := txns.AttachTag(ctx, t.ID, tag.ID); err != nil {
					return fmt.Errorf("tag entry %d: %w", line, err)
				}
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("record ledger: %w", err)
	}
	s.logger().Info("ledger import",
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped), zap.Int("errors", len(res.Errors)))

	if res.Imported > 0 && s.RunAfterImport && s.Detection != nil {
		report, err := s.Detection.Run(ctx, RunOptions{})
		if err != nil {
			return res, fmt.Errorf("detect after import: %w", err)
		}
		res.Report = &report
	}
	return res, nil
}

// ImportJSON reads a JSON array of entries.
func (s *LedgerService) ImportJSON(ctx context.Context, r io.Reader, tz *time.Location) (ImportResult, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return ImportResult{}, fmt.Errorf("decode entries: %w", err)
	}
	return s.Record(ctx, entries, tz)
}

// ImportCSV reads headerless rows:
// date, posted_date, description, amount, external_id, account, merchant, category, tags.
// The last three columns are optional; tags are separated by ';'.
func (s *LedgerService) ImportCSV(ctx context.Context, r io.Reader, tz *time.Location) (ImportResult, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	var entries []Entry
	var parseErrs []error
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if len(rec) < 6 {
			parseErrs = append(parseErrs, fmt.Errorf("line %d: expected at least 6 columns", line))
			continue
		}
		e := Entry{
			Date: rec[0], PostedDate: rec[1], Description: rec[2], Amount: rec[3],
			ExternalID: rec[4], Account: rec[5],
		}
		if len(rec) > 6 {
			e.Merchant = rec[6]
		}
		if len(rec) > 7 {
			e.Category = rec[7]
		}
		if len(rec) > 8 && strings.TrimSpace(rec[8]) != "" {
			e.Tags = strings.Split(rec[8], ";")
		}
		entries = append(entries, e)
	}
	res, err := s.Record(ctx, entries, tz)
	res.Errors = append(parseErrs, res.Errors...)
	return res, err
}

// Archive hides a transaction from detection, or restores it.
func (s *LedgerService) Archive(ctx context.Context, id string, archived bool) error {
	ok, err := repository.NewTransactionRepo(s.DB).SetArchived(ctx, id, archived)
	if err != nil {
		return fmt.Errorf("archive transaction: %w", err)
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// Categorize moves a transaction to the named category, creating it when
// needed. An empty name clears the category.
func (s *LedgerService) Categorize(ctx context.Context, id, category string) error {
	return database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var catID *string
		if name := strings.TrimSpace(category); name != "" {
			cat, err := repository.NewCategoryRepo(tx).EnsureByName(ctx, name)
			if err != nil {
				return fmt.Errorf("ensure category %q: %w", name, err)
			}
			catID = &cat.ID
		}
		ok, err := repository.NewTransactionRepo(tx).UpdateCategory(ctx, id, catID)
		if err != nil {
			return fmt.Errorf("categorize transaction: %w", err)
		}
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// Retag attaches and detaches tags on a transaction. Removing a tag the
// transaction does not carry is a no-op.
func (s *LedgerService) Retag(ctx context.Context, id string, add, remove []string) error {
	return database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		txns := repository.NewTransactionRepo(tx)
		tags := repository.NewTagRepo(tx)
		t, err := txns.Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		for _, name := range remove {
			tag, err := tags.ByName(ctx, strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return err
			}
			if tag == nil {
				continue
			}
			if err := txns.RemoveTag(ctx, id, tag.ID); err != nil {
				return fmt.Errorf("remove tag %q: %w", name, err)
			}
		}
		for _, name := range add {
			if strings.TrimSpace(name) == "" {
				continue
			}
			tag, err := tags.Ensure(ctx, name)
			if err != nil {
				return fmt.Errorf("ensure tag %q: %w", name, err)
			}
			if err := txns.AttachTag(ctx, id, tag.ID); err != nil {
				return fmt.Errorf("tag transaction: %w", err)
			}
		}
		return nil
	})
}

func (s *LedgerService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func normalizeEntry(e Entry, tz *time.Location) (repository.Transaction, error) {
	date, err := parseLocalDate(e.Date, tz)
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("date: %w", err)
	}
	var posted *time.Time
	if strings.TrimSpace(e.PostedDate) != "" {
		p, err := parseLocalDate(e.PostedDate, tz)
		if err != nil {
			return repository.Transaction{}, fmt.Errorf("posted_date: %w", err)
		}
		posted = &p
	}
	amount, err := dollarsToCents(e.Amount)
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = strings.TrimSpace(e.Merchant)
	}
	return repository.Transaction{
		ID:             uuid.NewString(),
		ExternalID:     nullableStr(e.ExternalID),
		Date:           date,
		PostedDate:     posted,
		AmountCents:    amount,
		RawDescription: desc,
		MerchantName:   nullableStr(e.Merchant),
		Status:         chooseStatus(posted),
	}, nil
}

func dollarsToCents(s string) (int64, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func nullableStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func chooseStatus(posted *time.Time) string {
	if posted == nil {
		return "pending"
	}
	return "posted"
}

func hashSource(parts ...string) *string {
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	h := fmt.Sprintf("%x", sum[:])
	return &h
}

// parseLocalDate reads a civil date in loc and returns midnight UTC of the same calendar day.
func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func accountForName(ctx context.Context, accounts *repository.AccountRepo, name string) (repository.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Account{}, errors.New("account name required")
	}
	acct := repository.Account{ID: deterministicAccountID(name), Name: name, Institution: name, AccountType: "checking"}
	if err := accounts.Upsert(ctx, acct); err != nil {
		return repository.Account{}, err
	}
	return acct, nil
}

func deterministicAccountID(name string) string {
	key := strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
