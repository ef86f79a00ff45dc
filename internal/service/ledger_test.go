package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestImportCSV_DedupAndNormalization(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	data := "2024-01-03,2024-01-04,NETFLIX.COM 123,-15.49,,Everyday,Netflix,Streaming,TV;family\n" +
		"2024-02-03,,NETFLIX.COM 456,-15.49,ext-9,Everyday,Netflix,Streaming\n" +
		"2024-02-05,,SALARY,+2500.00,,Everyday\n" +
		"bad-date,,X,-1,,Everyday\n" +
		"2024-02-06,,SHORT"

	res, err := e.ledger.ImportCSV(e.ctx, strings.NewReader(data), time.UTC)
	require.NoError(t, err)
	require.Equal(t, 3, res.Imported)
	require.Equal(t, 0, res.Skipped)
	require.Len(t, res.Errors, 2)

	res, err = e.ledger.ImportCSV(e.ctx, strings.NewReader(data), time.UTC)
	require.NoError(t, err)
	require.Equal(t, 0, res.Imported)
	require.Equal(t, 3, res.Skipped)

	txs, err := repository.NewTransactionRepo(e.db).List(e.ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	byDesc := make(map[string]repository.Transaction)
	for _, tx := range txs {
		byDesc[tx.RawDescription] = tx
	}

	jan := byDesc["NETFLIX.COM 123"]
	require.Equal(t, int64(-1549), jan.AmountCents)
	require.Equal(t, "Netflix", jan.Merchant())
	require.Equal(t, "Streaming", jan.CategoryName)
	require.Equal(t, "posted", jan.Status)
	require.Equal(t, "2024-01-03", jan.Date.Format(time.DateOnly))
	require.Len(t, jan.Tags, 2)
	require.Equal(t, "family", jan.Tags[0].Name)
	require.Equal(t, "tv", jan.Tags[1].Name)

	feb := byDesc["NETFLIX.COM 456"]
	require.Equal(t, "pending", feb.Status)
	require.Equal(t, "ext-9", *feb.ExternalID)

	salary := byDesc["SALARY"]
	require.Equal(t, int64(250000), salary.AmountCents)
	require.Nil(t, salary.MerchantName)
	require.Equal(t, jan.AccountID, salary.AccountID)
}

func TestImportJSONRunsDetectionAfterImport(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.ledger.Detection = e.detect
	e.ledger.RunAfterImport = true

	body := `[
	 {"account":"Everyday","date":"2024-01-03","amount":"-15.49","description":"NETFLIX","merchant":"Netflix","category":"Streaming"},
	 {"account":"Everyday","date":"2024-02-03","amount":"-15.49","description":"NETFLIX","merchant":"Netflix","category":"Streaming"},
	 {"account":"Everyday","date":"2024-03-03","amount":"-15.49","description":"NETFLIX","merchant":"Netflix","category":"Streaming"}
	]`
	res, err := e.ledger.ImportJSON(e.ctx, strings.NewReader(body), nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Imported)
	require.NotNil(t, res.Report)
	require.Equal(t, 1, res.Report.NewSubscriptions)
	require.Equal(t, 1, e.count(t, "subscriptions"))

	// Nothing new imported, so no run.
	res, err = e.ledger.ImportJSON(e.ctx, strings.NewReader(body), nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Skipped)
	require.Nil(t, res.Report)

	_, err = e.ledger.ImportJSON(e.ctx, strings.NewReader("{not json"), nil)
	require.Error(t, err)
}

func TestArchiveHidesTransactionsFromDetection(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-01-03", 3, "-15.49", "Netflix", "Streaming")...)

	txs, err := repository.NewTransactionRepo(e.db).List(e.ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	require.NoError(t, e.ledger.Archive(e.ctx, txs[0].ID, true))
	require.NoError(t, e.ledger.Archive(e.ctx, txs[1].ID, true))

	r := e.run(t, "2024-03-10")
	require.Equal(t, 1, r.Transactions)
	require.Zero(t, r.NewSubscriptions)

	err = e.ledger.Archive(e.ctx, "missing", true)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDollarsToCents(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]int64{
		"-15.49":    -1549,
		"+2,500.00": 250000,
		"10.005":    1001,
		"7":         700,
	} {
		got, err := dollarsToCents(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := dollarsToCents("ten")
	require.Error(t, err)
}

func TestCategorizeAndRetag(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, entry("2024-03-09", "-62.00", "Corner Bistro", "Groceries", "family"))

	txns := repository.NewTransactionRepo(e.db)
	list, err := txns.List(e.ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	require.NoError(t, e.ledger.Categorize(e.ctx, id, "Dining"))
	require.NoError(t, e.ledger.Retag(e.ctx, id, []string{"Work", " "}, []string{"FAMILY", "missing"}))

	got, err := txns.Get(e.ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dining", got.CategoryName)
	require.Len(t, got.Tags, 1)
	require.Equal(t, "work", got.Tags[0].Name)

	require.NoError(t, e.ledger.Categorize(e.ctx, id, ""))
	got, err = txns.Get(e.ctx, id)
	require.NoError(t, err)
	require.Empty(t, got.CategoryName)

	require.True(t, errors.Is(e.ledger.Categorize(e.ctx, "nope", "Dining"), ErrNotFound))
	require.True(t, errors.Is(e.ledger.Retag(e.ctx, "nope", []string{"x"}, nil), ErrNotFound))
}
