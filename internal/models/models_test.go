package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStatementLineValidate(t *testing.T) {
	valid := StatementLine{
		CompanyID: 1,
		Amount:    decimal.NewFromInt(100),
		Currency:  "USD",
		Date:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		mutate  func(*StatementLine)
		wantErr bool
	}{
		{"valid", func(sl *StatementLine) {}, false},
		{"missing company", func(sl *StatementLine) { sl.CompanyID = 0 }, true},
		{"zero amount", func(sl *StatementLine) { sl.Amount = decimal.Zero }, true},
		{"blank currency", func(sl *StatementLine) { sl.Currency = "  " }, true},
		{"zero date", func(sl *StatementLine) { sl.Date = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl := valid
			tt.mutate(&sl)
			err := sl.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestStatementLineExpectedAccountType(t *testing.T) {
	inbound := StatementLine{Amount: decimal.NewFromInt(100)}
	if inbound.ExpectedAccountType() != AccountReceivable {
		t.Error("Expected inbound money to settle receivables")
	}

	outbound := StatementLine{Amount: decimal.NewFromInt(-100)}
	if outbound.ExpectedAccountType() != AccountPayable {
		t.Error("Expected outbound money to settle payables")
	}
}

func TestStatementLineTextValue(t *testing.T) {
	sl := StatementLine{PaymentRef: "a", Narration: "b", Ref: "c"}

	if sl.TextValue(FieldPaymentRef) != "a" || sl.TextValue(FieldNarration) != "b" || sl.TextValue(FieldRef) != "c" {
		t.Error("TextValue returned wrong field content")
	}
	if sl.TextValue("bogus") != "" {
		t.Error("Expected empty string for unknown field")
	}
}

func TestLedgerEntryIsOpen(t *testing.T) {
	open := LedgerEntry{Residual: decimal.NewFromInt(50)}
	if !open.IsOpen() {
		t.Error("Expected entry with residual to be open")
	}

	settled := LedgerEntry{Residual: decimal.NewFromInt(50), ReconciledWith: 1}
	if settled.IsOpen() {
		t.Error("Expected reconciled entry to be closed")
	}

	paid := LedgerEntry{Residual: decimal.Zero}
	if paid.IsOpen() {
		t.Error("Expected zero-residual entry to be closed")
	}
}

func TestLedgerEntryEffectiveDate(t *testing.T) {
	posting := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	maturity := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	le := LedgerEntry{Date: posting}
	if !le.EffectiveDate().Equal(posting) {
		t.Error("Expected posting date without maturity")
	}

	le.MaturityDate = maturity
	if !le.EffectiveDate().Equal(maturity) {
		t.Error("Expected maturity date to take precedence")
	}
}

func TestReconcileModelValidate(t *testing.T) {
	valid := ReconcileModel{
		Name:          "Invoice matching",
		RuleType:      RuleInvoiceMatching,
		ToleranceType: TolerancePercentage,
		MatchingOrder: OrderOldFirst,
		TextFields:    []TextField{FieldPaymentRef},
	}

	tests := []struct {
		name    string
		mutate  func(*ReconcileModel)
		wantErr bool
	}{
		{"valid", func(rm *ReconcileModel) {}, false},
		{"blank name", func(rm *ReconcileModel) { rm.Name = " " }, true},
		{"invalid rule type", func(rm *ReconcileModel) { rm.RuleType = "bogus" }, true},
		{"invalid tolerance type", func(rm *ReconcileModel) { rm.ToleranceType = "bogus" }, true},
		{"negative tolerance", func(rm *ReconcileModel) { rm.ToleranceParam = decimal.NewFromInt(-1) }, true},
		{"invalid matching order", func(rm *ReconcileModel) { rm.MatchingOrder = "bogus" }, true},
		{"invalid text field", func(rm *ReconcileModel) { rm.TextFields = []TextField{"bogus"} }, true},
		{"negative months limit", func(rm *ReconcileModel) { rm.PastMonthsLimit = -1 }, true},
		{"writeoff without account", func(rm *ReconcileModel) { rm.RuleType = RuleWriteoffSuggestion }, true},
		{"writeoff with account", func(rm *ReconcileModel) {
			rm.RuleType = RuleWriteoffSuggestion
			rm.WriteoffAccount = "626000"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := valid
			tt.mutate(&rm)
			err := rm.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestSaleOrderIsMatchable(t *testing.T) {
	tests := []struct {
		name      string
		status    InvoiceStatus
		state     OrderState
		matchable bool
	}{
		{"to invoice", InvoiceStatusToInvoice, OrderStateSale, true},
		{"invoiced", InvoiceStatusInvoiced, OrderStateDone, true},
		{"sent quotation", InvoiceStatusNo, OrderStateSent, true},
		{"draft", InvoiceStatusNo, OrderStateDraft, false},
		{"done but nothing to invoice", InvoiceStatusNo, OrderStateDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			so := SaleOrder{InvoiceStatus: tt.status, State: tt.state}
			if so.IsMatchable() != tt.matchable {
				t.Errorf("IsMatchable() = %t, expected %t", so.IsMatchable(), tt.matchable)
			}
		})
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"100.50", "100.5", false},
		{"$1,234.56", "1234.56", false},
		{" -42.5 ", "-42.5", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		d, err := ParseDecimalFromString(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalFromString(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalFromString(%q) failed: %v", tt.input, err)
			continue
		}
		if d.String() != tt.expected {
			t.Errorf("ParseDecimalFromString(%q) = %s, expected %s", tt.input, d, tt.expected)
		}
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-06-01T10:30:00Z", time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"06/01/2024", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"Jan 2, 2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseTimeWithFormats(tt.input)
		if err != nil {
			t.Errorf("ParseTimeWithFormats(%q) failed: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.expected) {
			t.Errorf("ParseTimeWithFormats(%q) = %s, expected %s", tt.input, got, tt.expected)
		}
	}

	if _, err := ParseTimeWithFormats("not a date"); err == nil {
		t.Error("Expected error for unparseable input")
	}
	if _, err := ParseTimeWithFormats(""); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestCompareAmountsWithTolerance(t *testing.T) {
	a := decimal.NewFromInt(1000)
	b := decimal.NewFromInt(990)

	if !CompareAmountsWithTolerance(a, b, decimal.NewFromInt(10)) {
		t.Error("Expected gap of 10 to pass a tolerance of 10")
	}
	if CompareAmountsWithTolerance(a, b, decimal.NewFromInt(9)) {
		t.Error("Expected gap of 10 to fail a tolerance of 9")
	}
	if !CompareAmountsWithTolerance(a, a, decimal.Zero) {
		t.Error("Expected equal amounts to pass zero tolerance")
	}
}
