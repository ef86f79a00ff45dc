package detection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestTipDiscrepancy(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		bank  int64
		total int64
		alert bool
	}{
		{"30 percent over", 2600, 2000, true},
		{"exactly 25 percent", 2500, 2000, false},
		{"normal tip", 2300, 2000, false},
		{"bank below receipt", 1800, 2000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore(t, Config{})
			txID := s.charge("Bistro", "2024-04-02", tc.bank, "Restaurants")
			s.snapshot.Receipts = []repository.ConfirmedReceipt{{
				MatchID: "m1", ReceiptID: "r1", TransactionID: txID, Merchant: "BISTRO", ReceiptTotalCents: tc.total,
			}}
			s.run("2024-04-03")
			alerts := s.openAlerts(repository.AlertTipDiscrepancy)
			if !tc.alert {
				require.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			require.Equal(t, txID, *alerts[0].TransactionID)
			p := decoded[TipDiscrepancyPayload](t, alerts[0])
			require.Equal(t, "Bistro", p.Merchant)
			require.Equal(t, int64(600), p.TipCents)
			require.Equal(t, "30.00", p.TipPercent)
		})
	}
}

func TestTipIgnoresOutOfScopeTransactions(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	txID := s.charge("Bistro", "2024-04-02", 5000, "Restaurants")
	s.snapshot.Transactions[0].AccountID = "acct-2"
	s.snapshot.Scope = "acct-1"
	s.snapshot.Receipts = []repository.ConfirmedReceipt{{TransactionID: txID, ReceiptTotalCents: 2000}}
	s.run("2024-04-03")
	require.Empty(t, s.snapshot.Alerts)
}
