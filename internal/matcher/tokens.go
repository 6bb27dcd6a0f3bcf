package matcher

import (
	"strings"
	"unicode"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// ExtractTokens turns a statement line's enabled free-text fields into
// normalized tokens for matching: lower-cased, whitespace-trimmed,
// punctuation-stripped, one per enabled field that has content.
//
// An empty result means the candidate search for a text rule is skipped
// entirely. That is a fast-exit, not a failure.
func ExtractTokens(line *models.StatementLine, fields []models.TextField) []string {
	var tokens []string

	for _, field := range fields {
		token := NormalizeLabel(line.TextValue(field))
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// NormalizeLabel lower-cases a label and strips punctuation so that
// "INV/2024-0042" and "inv 2024 0042" compare equal.
func NormalizeLabel(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// TokenMatches reports whether a normalized token and a normalized label
// share a substring: containment in either direction is accepted.
func TokenMatches(token, label string) bool {
	if token == "" || label == "" {
		return false
	}
	return strings.Contains(label, token) || strings.Contains(token, label)
}

// AnyTokenMatches reports whether any of the tokens matches the label
func AnyTokenMatches(tokens []string, label string) bool {
	for _, token := range tokens {
		if TokenMatches(token, label) {
			return true
		}
	}
	return false
}

// ToleranceWindow computes the numeric window [amount-tol, amount+tol]
// around a statement amount for the given model's tolerance settings.
func ToleranceWindow(model *models.ReconcileModel, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	tol := ToleranceAmount(model, amount)
	return amount.Sub(tol), amount.Add(tol)
}

// ToleranceAmount returns the model's allowed discrepancy for an amount
func ToleranceAmount(model *models.ReconcileModel, amount decimal.Decimal) decimal.Decimal {
	switch model.ToleranceType {
	case models.TolerancePercentage:
		return amount.Abs().Mul(model.ToleranceParam).Div(decimal.NewFromInt(100))
	case models.ToleranceFixedAmount:
		return model.ToleranceParam.Abs()
	default:
		return decimal.Zero
	}
}
