package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id               INTEGER PRIMARY KEY,
			name             TEXT NOT NULL,
			fiscal_lock_date TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS reconcile_models (
			id                INTEGER PRIMARY KEY,
			company_id        INTEGER NOT NULL,
			name              TEXT NOT NULL,
			sequence          INTEGER NOT NULL DEFAULT 10,
			rule_type         TEXT NOT NULL,
			auto_reconcile    INTEGER NOT NULL DEFAULT 0,
			tolerance_type    TEXT NOT NULL DEFAULT 'percentage',
			tolerance_param   TEXT NOT NULL DEFAULT '0',
			matching_order    TEXT NOT NULL DEFAULT 'old_first',
			text_fields       TEXT NOT NULL DEFAULT 'payment_ref',
			past_months_limit INTEGER NOT NULL DEFAULT 0,
			writeoff_account  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_company ON reconcile_models(company_id, sequence)`,

		`CREATE TABLE IF NOT EXISTS statement_lines (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id   INTEGER NOT NULL,
			partner_id   INTEGER NOT NULL DEFAULT 0,
			amount       TEXT NOT NULL,
			currency     TEXT NOT NULL,
			date         TEXT NOT NULL,
			payment_ref  TEXT NOT NULL DEFAULT '',
			narration    TEXT NOT NULL DEFAULT '',
			ref          TEXT NOT NULL DEFAULT '',
			reconciled   INTEGER NOT NULL DEFAULT 0,
			last_checked TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_unreconciled ON statement_lines(company_id, reconciled, date)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id               INTEGER PRIMARY KEY,
			company_id       INTEGER NOT NULL,
			partner_id       INTEGER NOT NULL DEFAULT 0,
			account_type     TEXT NOT NULL,
			label            TEXT NOT NULL DEFAULT '',
			balance          TEXT NOT NULL,
			residual         TEXT NOT NULL,
			currency         TEXT NOT NULL,
			date             TEXT NOT NULL,
			maturity_date    TEXT,
			batch_payment_id INTEGER NOT NULL DEFAULT 0,
			sale_order_id    INTEGER NOT NULL DEFAULT 0,
			reconciled_with  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_partner ON ledger_entries(company_id, partner_id, account_type)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_batch ON ledger_entries(batch_payment_id)`,

		`CREATE TABLE IF NOT EXISTS batch_payments (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS sale_orders (
			id             INTEGER PRIMARY KEY,
			company_id     INTEGER NOT NULL,
			partner_id     INTEGER NOT NULL DEFAULT 0,
			name           TEXT NOT NULL,
			invoice_status TEXT NOT NULL DEFAULT 'no',
			state          TEXT NOT NULL DEFAULT 'draft',
			date           TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_order_invoices (
			order_id INTEGER NOT NULL,
			entry_id INTEGER NOT NULL,
			UNIQUE(order_id, entry_id)
		)`,

		`CREATE TABLE IF NOT EXISTS writeoff_postings (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			line_id    INTEGER NOT NULL,
			account    TEXT NOT NULL,
			amount     TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			line_id    INTEGER NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_line ON audit_messages(line_id)`,
	}
}

// SQLiteStore is the SQLite-backed Store implementation
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "open_database", err)
	}

	// One writer at a time keeps the per-batch transaction semantics
	// simple; concurrent cron workers queue on the busy timeout.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, errors.StoreError(errors.CodeTxFailed, "configure_database", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations() {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.StoreError(errors.CodeTxFailed, "migrate", err)
		}
	}
	return nil
}

const lineColumns = `id, company_id, partner_id, amount, currency, date,
	payment_ref, narration, ref, reconciled, last_checked`

const entryColumns = `id, company_id, partner_id, account_type, label,
	balance, residual, currency, date, maturity_date,
	batch_payment_id, sale_order_id, reconciled_with`

func (s *SQLiteStore) CompaniesWithAutoRules(ctx context.Context) ([]*models.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.name, c.fiscal_lock_date
		FROM companies c
		JOIN reconcile_models r ON r.company_id = c.id
		WHERE r.auto_reconcile = 1
		ORDER BY c.id`)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "companies_with_auto_rules", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c := &models.Company{}
		var lockDate sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &lockDate); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "companies_with_auto_rules", err)
		}
		if lockDate.Valid {
			if c.FiscalLockDate, err = parseStoredTime(lockDate.String); err != nil {
				return nil, err
			}
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *SQLiteStore) ModelsForCompany(ctx context.Context, companyID int64) ([]*models.ReconcileModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, sequence, rule_type, auto_reconcile,
		       tolerance_type, tolerance_param, matching_order,
		       text_fields, past_months_limit, writeoff_account
		FROM reconcile_models
		WHERE company_id = ?
		ORDER BY sequence, id`, companyID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "models_for_company", err)
	}
	defer rows.Close()

	var result []*models.ReconcileModel
	for rows.Next() {
		rm := &models.ReconcileModel{}
		var auto int
		var tolParam, textFields string
		var writeoff sql.NullString
		if err := rows.Scan(&rm.ID, &rm.CompanyID, &rm.Name, &rm.Sequence,
			&rm.RuleType, &auto, &rm.ToleranceType, &tolParam,
			&rm.MatchingOrder, &textFields, &rm.PastMonthsLimit, &writeoff); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "models_for_company", err)
		}
		rm.AutoReconcile = auto != 0
		if rm.ToleranceParam, err = decimal.NewFromString(tolParam); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "models_for_company", err)
		}
		for _, f := range strings.Split(textFields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				rm.TextFields = append(rm.TextFields, models.TextField(f))
			}
		}
		rm.WriteoffAccount = writeoff.String
		result = append(result, rm)
	}
	return result, rows.Err()
}

// InsertModel persists a reconcile model (setup/test helper)
func (s *SQLiteStore) InsertModel(ctx context.Context, rm *models.ReconcileModel) error {
	fields := make([]string, 0, len(rm.TextFields))
	for _, f := range rm.TextFields {
		fields = append(fields, string(f))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_models
		(id, company_id, name, sequence, rule_type, auto_reconcile,
		 tolerance_type, tolerance_param, matching_order, text_fields,
		 past_months_limit, writeoff_account)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rm.ID, rm.CompanyID, rm.Name, rm.Sequence, rm.RuleType,
		boolToInt(rm.AutoReconcile), rm.ToleranceType,
		rm.ToleranceParam.String(), rm.MatchingOrder,
		strings.Join(fields, ","), rm.PastMonthsLimit, rm.WriteoffAccount)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_model", err)
	}
	return nil
}

// InsertCompany persists a company (setup/test helper)
func (s *SQLiteStore) InsertCompany(ctx context.Context, c *models.Company) error {
	var lockDate interface{}
	if !c.FiscalLockDate.IsZero() {
		lockDate = formatStoredTime(c.FiscalLockDate)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, fiscal_lock_date) VALUES (?, ?, ?)`,
		c.ID, c.Name, lockDate)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_company", err)
	}
	return nil
}

// InsertEntry persists a ledger entry (setup/test helper)
func (s *SQLiteStore) InsertEntry(ctx context.Context, le *models.LedgerEntry) error {
	var maturity interface{}
	if !le.MaturityDate.IsZero() {
		maturity = formatStoredTime(le.MaturityDate)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, company_id, partner_id, account_type, label, balance,
		 residual, currency, date, maturity_date, batch_payment_id,
		 sale_order_id, reconciled_with)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		le.ID, le.CompanyID, le.PartnerID, le.AccountType, le.Label,
		le.Balance.String(), le.Residual.String(), le.Currency,
		formatStoredTime(le.Date), maturity, le.BatchPaymentID,
		le.SaleOrderID, le.ReconciledWith)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_entry", err)
	}
	return nil
}

func (s *SQLiteStore) UnreconciledLines(ctx context.Context, companyID int64, floor time.Time, limit int) ([]*models.StatementLine, bool, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM statement_lines
		WHERE company_id = ? AND reconciled = 0 AND date >= ?
		ORDER BY last_checked IS NOT NULL, last_checked, id`, lineColumns)

	args := []interface{}{companyID, formatStoredTime(floor)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, errors.StoreError(errors.CodeTxFailed, "unreconciled_lines", err)
	}
	defer rows.Close()

	var lines []*models.StatementLine
	for rows.Next() {
		sl, err := scanLine(rows)
		if err != nil {
			return nil, false, err
		}
		lines = append(lines, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.StoreError(errors.CodeTxFailed, "unreconciled_lines", err)
	}

	more := false
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
		more = true
	}
	return lines, more, nil
}

func (s *SQLiteStore) StatementLine(ctx context.Context, id int64) (*models.StatementLine, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM statement_lines WHERE id = ?`, lineColumns), id)

	sl, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, errors.StoreError(errors.CodeNotFound, "statement_line", nil).WithContext("line_id", id)
	}
	return sl, err
}

func (s *SQLiteStore) InsertStatementLines(ctx context.Context, lines []*models.StatementLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_statement_lines", err)
	}
	defer tx.Rollback()

	for _, sl := range lines {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO statement_lines
			(company_id, partner_id, amount, currency, date,
			 payment_ref, narration, ref, reconciled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			sl.CompanyID, sl.PartnerID, sl.Amount.String(), sl.Currency,
			formatStoredTime(sl.Date), sl.PaymentRef, sl.Narration, sl.Ref)
		if err != nil {
			return errors.StoreError(errors.CodeTxFailed, "insert_statement_lines", err)
		}
		if sl.ID, err = res.LastInsertId(); err != nil {
			return errors.StoreError(errors.CodeTxFailed, "insert_statement_lines", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_statement_lines", err)
	}
	return nil
}

func (s *SQLiteStore) TouchLastChecked(ctx context.Context, lineID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE statement_lines SET last_checked = ? WHERE id = ?`,
		formatStoredTime(at), lineID)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "touch_last_checked", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.StoreError(errors.CodeNotFound, "touch_last_checked", nil).WithContext("line_id", lineID)
	}
	return nil
}

func (s *SQLiteStore) ApplyReconciliation(ctx context.Context, app *Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE statement_lines SET reconciled = 1 WHERE id = ? AND reconciled = 0`,
		app.LineID)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.StoreError(errors.CodeAlreadyReconciled, "apply_reconciliation", nil).
			WithContext("line_id", app.LineID)
	}

	for _, entryID := range app.EntryIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_entries SET reconciled_with = ?, residual = '0'
			WHERE id = ? AND reconciled_with = 0`, app.LineID, entryID)
		if err != nil {
			return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.StoreError(errors.CodeAlreadyReconciled, "apply_reconciliation", nil).
				WithContext("entry_id", entryID)
		}
	}

	now := formatStoredTime(time.Now().UTC())
	if app.Writeoff != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO writeoff_postings (line_id, account, amount, created_at)
			VALUES (?, ?, ?, ?)`,
			app.LineID, app.Writeoff.Account, app.Writeoff.Amount.String(), now); err != nil {
			return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
		}
	}
	if app.AuditNote != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_messages (line_id, message, created_at)
			VALUES (?, ?, ?)`, app.LineID, app.AuditNote, now); err != nil {
			return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError(errors.CodeTxFailed, "apply_reconciliation", err)
	}
	return nil
}

func (s *SQLiteStore) AuditMessages(ctx context.Context, lineID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM audit_messages WHERE line_id = ? ORDER BY id`, lineID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "audit_messages", err)
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "audit_messages", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) OpenEntries(ctx context.Context, companyID, partnerID int64, accountType models.AccountType) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM ledger_entries
		WHERE company_id = ? AND partner_id = ? AND account_type = ?
		  AND reconciled_with = 0 AND residual <> '0'`, entryColumns),
		companyID, partnerID, accountType)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "open_entries", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteStore) BatchedEntries(ctx context.Context, companyID, partnerID int64) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM ledger_entries
		WHERE company_id = ? AND partner_id = ? AND batch_payment_id <> 0
		  AND reconciled_with = 0 AND residual <> '0'`, entryColumns),
		companyID, partnerID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "batched_entries", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteStore) BatchPayments(ctx context.Context, ids []int64) (map[int64]*models.BatchPayment, error) {
	result := make(map[int64]*models.BatchPayment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args := inClause(`SELECT id, name FROM batch_payments WHERE id IN`, ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "batch_payments", err)
	}
	defer rows.Close()

	for rows.Next() {
		bp := &models.BatchPayment{}
		if err := rows.Scan(&bp.ID, &bp.Name); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "batch_payments", err)
		}
		result[bp.ID] = bp
	}
	return result, rows.Err()
}

// InsertBatchPayment persists a batch payment (setup/test helper)
func (s *SQLiteStore) InsertBatchPayment(ctx context.Context, bp *models.BatchPayment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_payments (id, name) VALUES (?, ?)`, bp.ID, bp.Name)
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_batch_payment", err)
	}
	return nil
}

func (s *SQLiteStore) SaleOrders(ctx context.Context, companyID, partnerID int64, since time.Time) ([]*models.SaleOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, partner_id, name, invoice_status, state, date
		FROM sale_orders
		WHERE company_id = ? AND partner_id = ? AND date >= ?
		ORDER BY id`, companyID, partnerID, formatStoredTime(since))
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
	}
	defer rows.Close()

	var orders []*models.SaleOrder
	for rows.Next() {
		so := &models.SaleOrder{}
		var date string
		if err := rows.Scan(&so.ID, &so.CompanyID, &so.PartnerID, &so.Name,
			&so.InvoiceStatus, &so.State, &date); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
		}
		if so.Date, err = parseStoredTime(date); err != nil {
			return nil, err
		}
		orders = append(orders, so)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
	}

	for _, so := range orders {
		invRows, err := s.db.QueryContext(ctx,
			`SELECT entry_id FROM sale_order_invoices WHERE order_id = ? ORDER BY entry_id`, so.ID)
		if err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
		}
		for invRows.Next() {
			var entryID int64
			if err := invRows.Scan(&entryID); err != nil {
				invRows.Close()
				return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
			}
			so.InvoiceEntries = append(so.InvoiceEntries, entryID)
		}
		if err := invRows.Err(); err != nil {
			invRows.Close()
			return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
		}
		invRows.Close()
	}
	return orders, nil
}

// InsertSaleOrder persists a sale order and its invoice links (setup/test helper)
func (s *SQLiteStore) InsertSaleOrder(ctx context.Context, so *models.SaleOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_orders (id, company_id, partner_id, name, invoice_status, state, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		so.ID, so.CompanyID, so.PartnerID, so.Name, so.InvoiceStatus,
		so.State, formatStoredTime(so.Date))
	if err != nil {
		return errors.StoreError(errors.CodeTxFailed, "insert_sale_order", err)
	}
	for _, entryID := range so.InvoiceEntries {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sale_order_invoices (order_id, entry_id) VALUES (?, ?)`,
			so.ID, entryID); err != nil {
			return errors.StoreError(errors.CodeTxFailed, "insert_sale_order", err)
		}
	}
	return nil
}

func (s *SQLiteStore) EntriesByIDs(ctx context.Context, ids []int64) ([]*models.LedgerEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := inClause(
		fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE id IN`, entryColumns), ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "entries_by_ids", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Scan helpers

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLine(row scanner) (*models.StatementLine, error) {
	sl := &models.StatementLine{}
	var amount, date string
	var reconciled int
	var lastChecked sql.NullString

	err := row.Scan(&sl.ID, &sl.CompanyID, &sl.PartnerID, &amount,
		&sl.Currency, &date, &sl.PaymentRef, &sl.Narration, &sl.Ref,
		&reconciled, &lastChecked)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "scan_statement_line", err)
	}

	if sl.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "scan_statement_line", err)
	}
	if sl.Date, err = parseStoredTime(date); err != nil {
		return nil, err
	}
	sl.Reconciled = reconciled != 0
	if lastChecked.Valid {
		t, err := parseStoredTime(lastChecked.String)
		if err != nil {
			return nil, err
		}
		sl.LastChecked = &t
	}
	return sl, nil
}

func collectEntries(rows *sql.Rows) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	for rows.Next() {
		le := &models.LedgerEntry{}
		var balance, residual, date string
		var maturity sql.NullString

		err := rows.Scan(&le.ID, &le.CompanyID, &le.PartnerID,
			&le.AccountType, &le.Label, &balance, &residual,
			&le.Currency, &date, &maturity, &le.BatchPaymentID,
			&le.SaleOrderID, &le.ReconciledWith)
		if err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "scan_ledger_entry", err)
		}

		if le.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "scan_ledger_entry", err)
		}
		if le.Residual, err = decimal.NewFromString(residual); err != nil {
			return nil, errors.StoreError(errors.CodeTxFailed, "scan_ledger_entry", err)
		}
		if le.Date, err = parseStoredTime(date); err != nil {
			return nil, err
		}
		if maturity.Valid {
			if le.MaturityDate, err = parseStoredTime(maturity.String); err != nil {
				return nil, err
			}
		}
		entries = append(entries, le)
	}
	return entries, rows.Err()
}

func inClause(prefix string, ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return fmt.Sprintf("%s (%s)", prefix, strings.Join(placeholders, ",")), args
}

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.StoreError(errors.CodeTxFailed, "parse_stored_time", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
