// Package store provides persistence for the reconciliation engine.
//
// The engine treats the relational store as an external collaborator:
// everything it needs is expressed by the Store interface, with a
// SQLite backend for deployments and an in-memory backend for tests
// and embedding. Row-level conflict between concurrent workers is the
// store's job; it surfaces as an already-reconciled store error from
// ApplyReconciliation.
package store

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract of the reconciliation engine. It is
// a superset of matcher.LedgerReader.
type Store interface {
	// CompaniesWithAutoRules returns companies that have at least one
	// reconcile model with auto-reconcile enabled.
	CompaniesWithAutoRules(ctx context.Context) ([]*models.Company, error)

	// ModelsForCompany returns a company's reconcile models in
	// sequence order.
	ModelsForCompany(ctx context.Context, companyID int64) ([]*models.ReconcileModel, error)

	// UnreconciledLines selects unreconciled statement lines dated on
	// or after floor, least recently checked first (never-checked
	// lines first of all), then by ID. A positive limit caps the
	// result; the second return value reports whether more lines
	// remained beyond the cap.
	UnreconciledLines(ctx context.Context, companyID int64, floor time.Time, limit int) ([]*models.StatementLine, bool, error)

	// StatementLine fetches one line by ID.
	StatementLine(ctx context.Context, id int64) (*models.StatementLine, error)

	// InsertStatementLines persists newly imported statement lines.
	InsertStatementLines(ctx context.Context, lines []*models.StatementLine) error

	// TouchLastChecked stamps a line's last-checked timestamp.
	TouchLastChecked(ctx context.Context, lineID int64, at time.Time) error

	// ApplyReconciliation atomically marks the line reconciled, links
	// the settling entries, records the optional write-off posting and
	// appends the audit note. It fails with an already-reconciled
	// store error when the line is no longer open.
	ApplyReconciliation(ctx context.Context, app *Application) error

	// AuditMessages returns the audit trail attached to a line.
	AuditMessages(ctx context.Context, lineID int64) ([]string, error)

	// LedgerReader methods (see matcher.LedgerReader).
	OpenEntries(ctx context.Context, companyID, partnerID int64, accountType models.AccountType) ([]*models.LedgerEntry, error)
	BatchedEntries(ctx context.Context, companyID, partnerID int64) ([]*models.LedgerEntry, error)
	BatchPayments(ctx context.Context, ids []int64) (map[int64]*models.BatchPayment, error)
	SaleOrders(ctx context.Context, companyID, partnerID int64, since time.Time) ([]*models.SaleOrder, error)
	EntriesByIDs(ctx context.Context, ids []int64) ([]*models.LedgerEntry, error)
}

// Application describes one reconciliation to post atomically
type Application struct {
	LineID    int64
	EntryIDs  []int64
	Writeoff  *WriteoffPosting
	AuditNote string
}

// WriteoffPosting is a counterpart posting absorbing the residual gap
type WriteoffPosting struct {
	Account string
	Amount  decimal.Decimal
}
