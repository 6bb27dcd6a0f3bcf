package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType represents the ledger account classification of an entry
type AccountType string

const (
	// AccountReceivable holds open customer balances
	AccountReceivable AccountType = "receivable"
	// AccountPayable holds open vendor balances
	AccountPayable AccountType = "payable"
)

// String returns the string representation of AccountType
func (a AccountType) String() string {
	return string(a)
}

// IsValid checks if the account type is valid
func (a AccountType) IsValid() bool {
	return a == AccountReceivable || a == AccountPayable
}

// RuleType represents the kind of reconcile model
type RuleType string

const (
	// RuleInvoiceMatching matches statement lines against open entries by text and amount
	RuleInvoiceMatching RuleType = "invoice_matching"
	// RuleWriteoffSuggestion is the catch-all rule posting a counterpart write-off
	RuleWriteoffSuggestion RuleType = "writeoff_suggestion"
)

// IsValid checks if the rule type is valid
func (r RuleType) IsValid() bool {
	return r == RuleInvoiceMatching || r == RuleWriteoffSuggestion
}

// ToleranceType represents how a model's allowed amount discrepancy is expressed
type ToleranceType string

const (
	// TolerancePercentage expresses tolerance as a percentage of the line amount
	TolerancePercentage ToleranceType = "percentage"
	// ToleranceFixedAmount expresses tolerance as a fixed amount in line currency
	ToleranceFixedAmount ToleranceType = "fixed_amount"
)

// IsValid checks if the tolerance type is valid
func (t ToleranceType) IsValid() bool {
	return t == TolerancePercentage || t == ToleranceFixedAmount
}

// MatchingOrder controls candidate ordering within a rule
type MatchingOrder string

const (
	// OrderOldFirst orders candidates by date ascending
	OrderOldFirst MatchingOrder = "old_first"
	// OrderNewFirst orders candidates by date descending
	OrderNewFirst MatchingOrder = "new_first"
)

// IsValid checks if the matching order is valid
func (m MatchingOrder) IsValid() bool {
	return m == OrderOldFirst || m == OrderNewFirst
}

// TextField names a statement line text field eligible for matching
type TextField string

const (
	FieldPaymentRef TextField = "payment_ref"
	FieldNarration  TextField = "narration"
	FieldRef        TextField = "ref"
)

// IsValid checks if the text field name is valid
func (f TextField) IsValid() bool {
	return f == FieldPaymentRef || f == FieldNarration || f == FieldRef
}

// InvoiceStatus represents a sale order's invoicing progress
type InvoiceStatus string

const (
	InvoiceStatusToInvoice InvoiceStatus = "to_invoice"
	InvoiceStatusInvoiced  InvoiceStatus = "invoiced"
	InvoiceStatusNo        InvoiceStatus = "no"
)

// OrderState represents a sale order's lifecycle state
type OrderState string

const (
	OrderStateDraft OrderState = "draft"
	OrderStateSent  OrderState = "sent"
	OrderStateSale  OrderState = "sale"
	OrderStateDone  OrderState = "done"
)

// StatementLine represents one row of an imported or manually entered
// bank transaction. The engine flips Reconciled and stamps LastChecked;
// it never deletes lines.
type StatementLine struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	PartnerID   int64           `json:"partner_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	PaymentRef  string          `json:"payment_ref"`
	Narration   string          `json:"narration"`
	Ref         string          `json:"ref"`
	Reconciled  bool            `json:"reconciled"`
	LastChecked *time.Time      `json:"last_checked,omitempty"`
}

// Validate performs basic validation on the StatementLine
func (sl *StatementLine) Validate() error {
	if sl.CompanyID == 0 {
		return fmt.Errorf("statement line company cannot be empty")
	}

	if sl.Amount.IsZero() {
		return fmt.Errorf("statement line amount cannot be zero")
	}

	if strings.TrimSpace(sl.Currency) == "" {
		return fmt.Errorf("statement line currency cannot be empty")
	}

	if sl.Date.IsZero() {
		return fmt.Errorf("statement line date cannot be zero")
	}

	return nil
}

// TextValue returns the content of the named text field
func (sl *StatementLine) TextValue(field TextField) string {
	switch field {
	case FieldPaymentRef:
		return sl.PaymentRef
	case FieldNarration:
		return sl.Narration
	case FieldRef:
		return sl.Ref
	default:
		return ""
	}
}

// ExpectedAccountType returns the account type expected to settle this
// line: inbound money settles receivables, outbound settles payables.
func (sl *StatementLine) ExpectedAccountType() AccountType {
	if sl.Amount.IsNegative() {
		return AccountPayable
	}
	return AccountReceivable
}

// String returns a string representation of the StatementLine
func (sl *StatementLine) String() string {
	return fmt.Sprintf("StatementLine{ID: %d, Amount: %s %s, Date: %s, Ref: %q}",
		sl.ID, sl.Amount.String(), sl.Currency, sl.Date.Format("2006-01-02"), sl.PaymentRef)
}

// LedgerEntry represents a posted accounting line (invoice line, payment
// line, journal item). Read-only for the engine except the
// reconciliation link written at apply time.
type LedgerEntry struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	PartnerID      int64           `json:"partner_id"`
	AccountType    AccountType     `json:"account_type"`
	Label          string          `json:"label"`
	Balance        decimal.Decimal `json:"balance"`
	Residual       decimal.Decimal `json:"residual"`
	Currency       string          `json:"currency"`
	Date           time.Time       `json:"date"`
	MaturityDate   time.Time       `json:"maturity_date"`
	BatchPaymentID int64           `json:"batch_payment_id,omitempty"` // 0 means not batched
	SaleOrderID    int64           `json:"sale_order_id,omitempty"`    // 0 means no order link
	ReconciledWith int64           `json:"reconciled_with,omitempty"`  // statement line ID, 0 means open
}

// IsOpen reports whether the entry still carries an unsettled residual
func (le *LedgerEntry) IsOpen() bool {
	return le.ReconciledWith == 0 && !le.Residual.IsZero()
}

// EffectiveDate returns the maturity date when set, the posting date otherwise
func (le *LedgerEntry) EffectiveDate() time.Time {
	if !le.MaturityDate.IsZero() {
		return le.MaturityDate
	}
	return le.Date
}

// String returns a string representation of the LedgerEntry
func (le *LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{ID: %d, Label: %q, Residual: %s %s}",
		le.ID, le.Label, le.Residual.String(), le.Currency)
}

// ReconcileModel is an accountant-owned configuration entity describing
// one matching rule. Models are evaluated once per statement line, in
// Sequence order.
type ReconcileModel struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	Name            string          `json:"name"`
	Sequence        int             `json:"sequence"`
	RuleType        RuleType        `json:"rule_type"`
	AutoReconcile   bool            `json:"auto_reconcile"`
	ToleranceType   ToleranceType   `json:"tolerance_type"`
	ToleranceParam  decimal.Decimal `json:"tolerance_param"`
	MatchingOrder   MatchingOrder   `json:"matching_order"`
	TextFields      []TextField     `json:"text_fields"`
	PastMonthsLimit int             `json:"past_months_limit"`
	WriteoffAccount string          `json:"writeoff_account,omitempty"`
}

// Validate performs basic validation on the ReconcileModel
func (rm *ReconcileModel) Validate() error {
	if strings.TrimSpace(rm.Name) == "" {
		return fmt.Errorf("reconcile model name cannot be empty")
	}

	if !rm.RuleType.IsValid() {
		return fmt.Errorf("invalid rule type: %s", rm.RuleType)
	}

	if !rm.ToleranceType.IsValid() {
		return fmt.Errorf("invalid tolerance type: %s", rm.ToleranceType)
	}

	if rm.ToleranceParam.IsNegative() {
		return fmt.Errorf("tolerance parameter cannot be negative")
	}

	if !rm.MatchingOrder.IsValid() {
		return fmt.Errorf("invalid matching order: %s", rm.MatchingOrder)
	}

	for _, field := range rm.TextFields {
		if !field.IsValid() {
			return fmt.Errorf("invalid text field: %s", field)
		}
	}

	if rm.PastMonthsLimit < 0 {
		return fmt.Errorf("past months limit cannot be negative")
	}

	if rm.RuleType == RuleWriteoffSuggestion && strings.TrimSpace(rm.WriteoffAccount) == "" {
		return fmt.Errorf("writeoff model requires a writeoff account")
	}

	return nil
}

// String returns a string representation of the ReconcileModel
func (rm *ReconcileModel) String() string {
	return fmt.Sprintf("ReconcileModel{ID: %d, Name: %q, Rule: %s, Auto: %t}",
		rm.ID, rm.Name, rm.RuleType, rm.AutoReconcile)
}

// BatchPayment represents a grouped payment run sharing one bank-file
// reference name. Batches with an empty name are ineligible for matching.
type BatchPayment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SaleOrder represents a sales order that statement lines may reference
// by name before an invoice exists.
type SaleOrder struct {
	ID             int64         `json:"id"`
	CompanyID      int64         `json:"company_id"`
	PartnerID      int64         `json:"partner_id"`
	Name           string        `json:"name"`
	InvoiceStatus  InvoiceStatus `json:"invoice_status"`
	State          OrderState    `json:"state"`
	Date           time.Time     `json:"date"`
	InvoiceEntries []int64       `json:"invoice_entries,omitempty"`
}

// IsMatchable reports whether the order is in a state eligible for
// statement matching: awaiting or carrying an invoice, or merely sent.
func (so *SaleOrder) IsMatchable() bool {
	switch {
	case so.InvoiceStatus == InvoiceStatusToInvoice || so.InvoiceStatus == InvoiceStatusInvoiced:
		return true
	case so.State == OrderStateSent:
		return true
	default:
		return false
	}
}

// Company represents a legal entity owning statement lines and models
type Company struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	FiscalLockDate time.Time `json:"fiscal_lock_date"` // zero means no lock
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"02-01-2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(tolerance)
}
