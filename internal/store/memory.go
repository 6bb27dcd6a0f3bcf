package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store backed by indexed maps. It serves
// tests and embedded usage; the indexes mirror what the SQLite backend
// does with SQL indexes (lookup by partner and account type).
type MemoryStore struct {
	mu sync.RWMutex

	companies     map[int64]*models.Company
	rules         map[int64]*models.ReconcileModel
	lines         map[int64]*models.StatementLine
	entries       map[int64]*models.LedgerEntry
	batches       map[int64]*models.BatchPayment
	orders        map[int64]*models.SaleOrder
	messages      map[int64][]string
	writeoffs     map[int64][]*WriteoffPosting
	nextLineID    int64

	// entriesByPartner indexes entry IDs by (companyID, partnerID)
	entriesByPartner map[partnerKey][]int64
}

type partnerKey struct {
	companyID int64
	partnerID int64
}

// Compile-time check that MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:        make(map[int64]*models.Company),
		rules:            make(map[int64]*models.ReconcileModel),
		lines:            make(map[int64]*models.StatementLine),
		entries:          make(map[int64]*models.LedgerEntry),
		batches:          make(map[int64]*models.BatchPayment),
		orders:           make(map[int64]*models.SaleOrder),
		messages:         make(map[int64][]string),
		writeoffs:        make(map[int64][]*WriteoffPosting),
		entriesByPartner: make(map[partnerKey][]int64),
		nextLineID:       1,
	}
}

// Seeding helpers

// AddCompany registers a company
func (m *MemoryStore) AddCompany(c *models.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
}

// AddModel registers a reconcile model
func (m *MemoryStore) AddModel(rm *models.ReconcileModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rm.ID] = rm
}

// AddLine registers a statement line
func (m *MemoryStore) AddLine(sl *models.StatementLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[sl.ID] = sl
	if sl.ID >= m.nextLineID {
		m.nextLineID = sl.ID + 1
	}
}

// AddEntry registers a ledger entry
func (m *MemoryStore) AddEntry(le *models.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[le.ID] = le
	key := partnerKey{companyID: le.CompanyID, partnerID: le.PartnerID}
	m.entriesByPartner[key] = append(m.entriesByPartner[key], le.ID)
}

// AddBatchPayment registers a batch payment
func (m *MemoryStore) AddBatchPayment(bp *models.BatchPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[bp.ID] = bp
}

// AddSaleOrder registers a sale order
func (m *MemoryStore) AddSaleOrder(so *models.SaleOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[so.ID] = so
}

// WriteoffPostings returns the write-off postings recorded for a line
func (m *MemoryStore) WriteoffPostings(lineID int64) []*WriteoffPosting {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writeoffs[lineID]
}

// Store implementation

func (m *MemoryStore) CompaniesWithAutoRules(ctx context.Context) ([]*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make(map[int64]bool)
	for _, rm := range m.rules {
		if rm.AutoReconcile && rm.RuleType.IsValid() {
			eligible[rm.CompanyID] = true
		}
	}

	var result []*models.Company
	for id := range eligible {
		if c, ok := m.companies[id]; ok {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ModelsForCompany(ctx context.Context, companyID int64) ([]*models.ReconcileModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.ReconcileModel
	for _, rm := range m.rules {
		if rm.CompanyID == companyID {
			result = append(result, rm)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Sequence != result[j].Sequence {
			return result[i].Sequence < result[j].Sequence
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) UnreconciledLines(ctx context.Context, companyID int64, floor time.Time, limit int) ([]*models.StatementLine, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.StatementLine
	for _, sl := range m.lines {
		if sl.CompanyID != companyID || sl.Reconciled {
			continue
		}
		if sl.Date.Before(floor) {
			continue
		}
		result = append(result, sl)
	}

	// Least recently checked first, never-checked lines first of all,
	// then by ID.
	sort.Slice(result, func(i, j int) bool {
		ci, cj := result[i].LastChecked, result[j].LastChecked
		switch {
		case ci == nil && cj != nil:
			return true
		case ci != nil && cj == nil:
			return false
		case ci != nil && cj != nil && !ci.Equal(*cj):
			return ci.Before(*cj)
		}
		return result[i].ID < result[j].ID
	})

	more := false
	if limit > 0 && len(result) > limit {
		result = result[:limit]
		more = true
	}
	return result, more, nil
}

func (m *MemoryStore) StatementLine(ctx context.Context, id int64) (*models.StatementLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sl, ok := m.lines[id]
	if !ok {
		return nil, errors.StoreError(errors.CodeNotFound, "statement_line", nil).WithContext("line_id", id)
	}
	return sl, nil
}

func (m *MemoryStore) InsertStatementLines(ctx context.Context, lines []*models.StatementLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sl := range lines {
		if sl.ID == 0 {
			sl.ID = m.nextLineID
		}
		m.lines[sl.ID] = sl
		if sl.ID >= m.nextLineID {
			m.nextLineID = sl.ID + 1
		}
	}
	return nil
}

func (m *MemoryStore) TouchLastChecked(ctx context.Context, lineID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sl, ok := m.lines[lineID]
	if !ok {
		return errors.StoreError(errors.CodeNotFound, "touch_last_checked", nil).WithContext("line_id", lineID)
	}
	stamp := at
	sl.LastChecked = &stamp
	return nil
}

func (m *MemoryStore) ApplyReconciliation(ctx context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sl, ok := m.lines[app.LineID]
	if !ok {
		return errors.StoreError(errors.CodeNotFound, "apply_reconciliation", nil).WithContext("line_id", app.LineID)
	}
	if sl.Reconciled {
		return errors.StoreError(errors.CodeAlreadyReconciled, "apply_reconciliation", nil).WithContext("line_id", app.LineID)
	}

	for _, entryID := range app.EntryIDs {
		entry, ok := m.entries[entryID]
		if !ok {
			return errors.StoreError(errors.CodeNotFound, "apply_reconciliation", nil).WithContext("entry_id", entryID)
		}
		if entry.ReconciledWith != 0 {
			return errors.StoreError(errors.CodeAlreadyReconciled, "apply_reconciliation", nil).WithContext("entry_id", entryID)
		}
	}

	// All checks passed, mutate in one go.
	sl.Reconciled = true
	for _, entryID := range app.EntryIDs {
		entry := m.entries[entryID]
		entry.ReconciledWith = app.LineID
		entry.Residual = decimal.Zero
	}
	if app.Writeoff != nil {
		m.writeoffs[app.LineID] = append(m.writeoffs[app.LineID], app.Writeoff)
	}
	if app.AuditNote != "" {
		m.messages[app.LineID] = append(m.messages[app.LineID], app.AuditNote)
	}
	return nil
}

func (m *MemoryStore) AuditMessages(ctx context.Context, lineID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.messages[lineID]...), nil
}

func (m *MemoryStore) OpenEntries(ctx context.Context, companyID, partnerID int64, accountType models.AccountType) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.LedgerEntry
	for _, id := range m.entriesByPartner[partnerKey{companyID: companyID, partnerID: partnerID}] {
		entry := m.entries[id]
		if entry.AccountType == accountType && entry.IsOpen() {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *MemoryStore) BatchedEntries(ctx context.Context, companyID, partnerID int64) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.LedgerEntry
	for _, id := range m.entriesByPartner[partnerKey{companyID: companyID, partnerID: partnerID}] {
		entry := m.entries[id]
		if entry.BatchPaymentID != 0 && entry.IsOpen() {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *MemoryStore) BatchPayments(ctx context.Context, ids []int64) (map[int64]*models.BatchPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[int64]*models.BatchPayment, len(ids))
	for _, id := range ids {
		if bp, ok := m.batches[id]; ok {
			result[id] = bp
		}
	}
	return result, nil
}

func (m *MemoryStore) SaleOrders(ctx context.Context, companyID, partnerID int64, since time.Time) ([]*models.SaleOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.SaleOrder
	for _, so := range m.orders {
		if so.CompanyID != companyID || so.PartnerID != partnerID {
			continue
		}
		if so.Date.Before(since) {
			continue
		}
		result = append(result, so)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) EntriesByIDs(ctx context.Context, ids []int64) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.LedgerEntry
	for _, id := range ids {
		if entry, ok := m.entries[id]; ok {
			result = append(result, entry)
		}
	}
	return result, nil
}
