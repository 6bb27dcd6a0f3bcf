package matcher

import (
	"testing"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

func rankLine(amount float64) *models.StatementLine {
	return &models.StatementLine{
		ID:       1,
		Amount:   decimal.NewFromFloat(amount),
		Currency: "USD",
	}
}

func TestRankByAmountProximityDeterminism(t *testing.T) {
	line := rankLine(1000)
	entries := []*models.LedgerEntry{
		{ID: 1, Residual: decimal.NewFromFloat(980), Currency: "USD"},  // distance 20
		{ID: 2, Residual: decimal.NewFromFloat(1001), Currency: "USD"}, // distance 1
		{ID: 3, Residual: decimal.NewFromFloat(1000), Currency: "USD"}, // distance 0
	}

	RankByAmountProximity(line, entries)

	expected := []int64{3, 2, 1}
	for i, id := range expected {
		if entries[i].ID != id {
			t.Fatalf("Expected order %v, got [%d %d %d]", expected, entries[0].ID, entries[1].ID, entries[2].ID)
		}
	}
}

func TestRankCrossCurrencyPenalty(t *testing.T) {
	line := rankLine(1000)
	entries := []*models.LedgerEntry{
		// Exact nominal match, but wrong currency.
		{ID: 1, Residual: decimal.NewFromFloat(1000), Currency: "EUR"},
		// 5% off, same currency: must still outrank the EUR entry.
		{ID: 2, Residual: decimal.NewFromFloat(950), Currency: "USD"},
	}

	RankByAmountProximity(line, entries)

	if entries[0].ID != 2 {
		t.Errorf("Expected same-currency candidate to outrank cross-currency, got entry %d first", entries[0].ID)
	}
}

func TestRankCrossCurrencyAfterDistantSameCurrency(t *testing.T) {
	line := rankLine(1000)
	entries := []*models.LedgerEntry{
		// 10% off, same currency: beyond the penalty distance.
		{ID: 1, Residual: decimal.NewFromFloat(900), Currency: "USD"},
		{ID: 2, Residual: decimal.NewFromFloat(1000), Currency: "EUR"},
	}

	RankByAmountProximity(line, entries)

	if entries[0].ID != 2 {
		t.Errorf("Expected cross-currency candidate to outrank a same-currency one beyond the penalty, got entry %d first", entries[0].ID)
	}
}

func TestRankNegativeLineAmount(t *testing.T) {
	line := rankLine(-500)
	entries := []*models.LedgerEntry{
		{ID: 1, Residual: decimal.NewFromFloat(-400), Currency: "USD"}, // distance 100
		{ID: 2, Residual: decimal.NewFromFloat(-499), Currency: "USD"}, // distance 1
	}

	RankByAmountProximity(line, entries)

	if entries[0].ID != 2 {
		t.Errorf("Expected closest residual first for negative amounts, got entry %d", entries[0].ID)
	}
}
