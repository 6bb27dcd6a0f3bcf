package matcher

import (
	"sort"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// crossCurrencyPenaltyPercent is the constant distance assigned to
// candidates in a different currency than the statement line, as a
// share of the line amount. Same-currency near-matches always outrank
// cross-currency candidates regardless of nominal size.
var crossCurrencyPenaltyPercent = decimal.NewFromInt(5)

// RankByAmountProximity reorders candidates so the ones numerically
// closest to the statement line amount come first. It is used for ad
// hoc grouped listings during manual reconciliation: a secondary sort
// key layered on the normal listing order, never a filter.
func RankByAmountProximity(line *models.StatementLine, entries []*models.LedgerEntry) {
	target := line.Amount.Abs()
	penalty := target.Mul(crossCurrencyPenaltyPercent).Div(decimal.NewFromInt(100))

	sort.SliceStable(entries, func(i, j int) bool {
		di := amountDistance(target, penalty, line.Currency, entries[i])
		dj := amountDistance(target, penalty, line.Currency, entries[j])

		if !di.Equal(dj) {
			return di.LessThan(dj)
		}

		// Same distance: same-currency candidates rank first.
		si := entries[i].Currency == line.Currency
		sj := entries[j].Currency == line.Currency
		if si != sj {
			return si
		}

		return entries[i].ID < entries[j].ID
	})
}

// amountDistance is the ranking distance of one candidate: the absolute
// residual difference for same-currency candidates, the constant 5%
// penalty otherwise.
func amountDistance(target, penalty decimal.Decimal, currency string, entry *models.LedgerEntry) decimal.Decimal {
	if entry.Currency != currency {
		return penalty
	}
	return entry.Residual.Abs().Sub(target).Abs()
}
