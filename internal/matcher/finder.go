package matcher

import (
	"context"
	"sort"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// LedgerReader is the slice of the store the candidate finder needs.
// Implementations must only return open entries (unsettled residual).
type LedgerReader interface {
	// OpenEntries returns open ledger entries on the given account type
	// for a partner, in no particular order.
	OpenEntries(ctx context.Context, companyID, partnerID int64, accountType models.AccountType) ([]*models.LedgerEntry, error)

	// BatchedEntries returns open entries linked to a payment that
	// belongs to a batch payment, for a partner.
	BatchedEntries(ctx context.Context, companyID, partnerID int64) ([]*models.LedgerEntry, error)

	// BatchPayments resolves batch payment records by ID.
	BatchPayments(ctx context.Context, ids []int64) (map[int64]*models.BatchPayment, error)

	// SaleOrders returns a partner's sale orders dated on or after the
	// given floor.
	SaleOrders(ctx context.Context, companyID, partnerID int64, since time.Time) ([]*models.SaleOrder, error)

	// EntriesByIDs resolves ledger entries by ID, skipping unknown IDs.
	EntriesByIDs(ctx context.Context, ids []int64) ([]*models.LedgerEntry, error)
}

// CandidateResult is the outcome of evaluating one reconcile model
// against one statement line. A nil *CandidateResult is the "no result"
// sentinel: the matcher found nothing and evaluation continues.
type CandidateResult struct {
	// Model is the reconcile model that produced this result.
	Model *models.ReconcileModel

	// Entries are the candidate ledger entries settling the line.
	Entries []*models.LedgerEntry

	// Orders holds sale orders surfaced as a suggestion when no
	// invoice exists yet. Suggestion-only results carry no entries.
	Orders []*models.SaleOrder

	// Writeoff, when set, requests a counterpart posting for the
	// unsettled gap against the given account.
	Writeoff *WriteoffSpec

	// AllowAutoReconcile marks the set as eligible for automatic
	// posting. Without it the result is surfaced for manual review
	// only and must never be posted automatically.
	AllowAutoReconcile bool
}

// WriteoffSpec describes a counterpart write-off posting
type WriteoffSpec struct {
	Account string
	Amount  decimal.Decimal
}

// matchContext carries the per-evaluation state shared by matchers
type matchContext struct {
	line   *models.StatementLine
	model  *models.ReconcileModel
	tokens []string
}

// matcherFunc is one step of a rule's matching pipeline. It returns nil
// when it finds nothing; the first non-nil result short-circuits the
// remaining steps for that rule.
type matcherFunc func(ctx context.Context, mc *matchContext) (*CandidateResult, error)

// Engine finds candidate ledger entries for statement lines by running
// reconcile models through statically composed matcher pipelines.
type Engine struct {
	config    *Config
	reader    LedgerReader
	pipelines map[models.RuleType][]matcherFunc
	log       logger.Logger
}

// NewEngine creates a candidate finding engine. The matcher pipelines
// are composed once here, not mutated afterwards.
func NewEngine(reader LedgerReader, config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matcher", err)
	}

	e := &Engine{
		config: config.Clone(),
		reader: reader,
		log:    logger.WithComponent("matcher"),
	}

	e.pipelines = map[models.RuleType][]matcherFunc{
		models.RuleInvoiceMatching: {
			e.matchInvoices,
			e.matchBatchPayments,
			e.matchSaleOrders,
		},
		models.RuleWriteoffSuggestion: {
			e.matchWriteoff,
		},
	}

	return e, nil
}

// Evaluate runs the models against the line in sequence order and
// returns the first candidate result, or nil when no model matched.
// Each model gets exactly one evaluation pass.
func (e *Engine) Evaluate(ctx context.Context, line *models.StatementLine, rules []*models.ReconcileModel) (*CandidateResult, error) {
	for _, model := range rules {
		result, err := e.evaluateModel(ctx, line, model)
		if err != nil {
			return nil, err
		}
		if result != nil {
			e.log.WithFields(logger.Fields{
				"line_id": line.ID,
				"model":   model.Name,
				"entries": len(result.Entries),
				"auto":    result.AllowAutoReconcile,
			}).Debug("model produced candidates")
			return result, nil
		}
	}

	return nil, nil
}

// evaluateModel runs one model's pipeline until the first non-nil result
func (e *Engine) evaluateModel(ctx context.Context, line *models.StatementLine, model *models.ReconcileModel) (*CandidateResult, error) {
	pipeline, ok := e.pipelines[model.RuleType]
	if !ok {
		return nil, errors.MatchingError(errors.CodeInvalidRule, "evaluate_model", nil).
			WithContext("rule_type", string(model.RuleType))
	}

	mc := &matchContext{
		line:   line,
		model:  model,
		tokens: ExtractTokens(line, model.TextFields),
	}

	for _, match := range pipeline {
		result, err := match(ctx, mc)
		if err != nil {
			return nil, err
		}
		if result != nil {
			result.Model = model
			return result, nil
		}
	}

	return nil, nil
}

// matchInvoices finds open entries on the partner's expected
// receivable/payable account whose normalized label shares a substring
// with one of the line's tokens.
func (e *Engine) matchInvoices(ctx context.Context, mc *matchContext) (*CandidateResult, error) {
	if len(mc.tokens) == 0 {
		return nil, nil
	}

	entries, err := e.reader.OpenEntries(ctx, mc.line.CompanyID, mc.line.PartnerID, mc.line.ExpectedAccountType())
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "open_entries", err)
	}

	var candidates []*models.LedgerEntry
	for _, entry := range entries {
		if !entry.IsOpen() {
			continue
		}
		if AnyTokenMatches(mc.tokens, NormalizeLabel(entry.Label)) {
			candidates = append(candidates, entry)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sortEntries(candidates, mc.model.MatchingOrder)

	return &CandidateResult{
		Entries:            candidates,
		AllowAutoReconcile: mc.model.AutoReconcile,
	}, nil
}

// matchBatchPayments applies the substring rule against the batch
// payment name of entries linked to a batched payment. Only batches
// with a non-empty name are eligible. A batch name match is considered
// high confidence, so auto-reconcile is allowed unconditionally here;
// the applier still verifies the balance before posting.
func (e *Engine) matchBatchPayments(ctx context.Context, mc *matchContext) (*CandidateResult, error) {
	if len(mc.tokens) == 0 {
		return nil, nil
	}

	entries, err := e.reader.BatchedEntries(ctx, mc.line.CompanyID, mc.line.PartnerID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "batched_entries", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}

	batchIDs := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if entry.BatchPaymentID != 0 {
			batchIDs = append(batchIDs, entry.BatchPaymentID)
		}
	}

	batches, err := e.reader.BatchPayments(ctx, batchIDs)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "batch_payments", err)
	}

	var candidates []*models.LedgerEntry
	for _, entry := range entries {
		if !entry.IsOpen() {
			continue
		}
		batch, ok := batches[entry.BatchPaymentID]
		if !ok || batch.Name == "" {
			continue
		}
		if AnyTokenMatches(mc.tokens, NormalizeLabel(batch.Name)) {
			candidates = append(candidates, entry)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sortEntries(candidates, mc.model.MatchingOrder)

	return &CandidateResult{
		Entries:            candidates,
		AllowAutoReconcile: true,
	}, nil
}

// matchSaleOrders applies the substring rule against sale order names
// carrying the configured order-reference prefix. Orders must be in a
// matchable state and dated within the model's lookback window. When
// none of the matched orders is invoiced yet, the orders are returned
// as a suggestion only; when some are invoiced, their invoice ledger
// lines become the candidates and auto-reconcile is allowed.
func (e *Engine) matchSaleOrders(ctx context.Context, mc *matchContext) (*CandidateResult, error) {
	prefix := NormalizeLabel(e.config.OrderRefPrefix)

	tokens := make([]string, 0, len(mc.tokens))
	for _, token := range mc.tokens {
		if AnyTokenMatches([]string{prefix}, token) {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	months := mc.model.PastMonthsLimit
	if months == 0 {
		months = e.config.DefaultPastMonthsLimit
	}
	since := mc.line.Date.AddDate(0, -months, 0)

	orders, err := e.reader.SaleOrders(ctx, mc.line.CompanyID, mc.line.PartnerID, since)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "sale_orders", err)
	}

	var matched []*models.SaleOrder
	for _, order := range orders {
		if !order.IsMatchable() {
			continue
		}
		if AnyTokenMatches(tokens, NormalizeLabel(order.Name)) {
			matched = append(matched, order)
		}
	}

	if len(matched) == 0 {
		return nil, nil
	}

	var invoiceEntryIDs []int64
	for _, order := range matched {
		if order.InvoiceStatus == models.InvoiceStatusInvoiced {
			invoiceEntryIDs = append(invoiceEntryIDs, order.InvoiceEntries...)
		}
	}

	if len(invoiceEntryIDs) == 0 {
		// Nothing invoiced yet: suggestion only.
		return &CandidateResult{Orders: matched}, nil
	}

	entries, err := e.reader.EntriesByIDs(ctx, invoiceEntryIDs)
	if err != nil {
		return nil, errors.StoreError(errors.CodeTxFailed, "entries_by_ids", err)
	}

	var open []*models.LedgerEntry
	for _, entry := range entries {
		if entry.IsOpen() {
			open = append(open, entry)
		}
	}
	if len(open) == 0 {
		return &CandidateResult{Orders: matched}, nil
	}

	sortEntries(open, mc.model.MatchingOrder)

	return &CandidateResult{
		Entries:            open,
		Orders:             matched,
		AllowAutoReconcile: true,
	}, nil
}

// matchWriteoff is the catch-all rule: it always produces a counterpart
// write-off posting for the full line amount against the model account.
func (e *Engine) matchWriteoff(ctx context.Context, mc *matchContext) (*CandidateResult, error) {
	return &CandidateResult{
		Writeoff: &WriteoffSpec{
			Account: mc.model.WriteoffAccount,
			Amount:  mc.line.Amount.Neg(),
		},
		AllowAutoReconcile: mc.model.AutoReconcile,
	}, nil
}

// sortEntries orders candidates by maturity/date per the rule's
// matching order, then by entry ID as a final tie-break.
func sortEntries(entries []*models.LedgerEntry, order models.MatchingOrder) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].EffectiveDate(), entries[j].EffectiveDate()
		if !di.Equal(dj) {
			if order == models.OrderNewFirst {
				return di.After(dj)
			}
			return di.Before(dj)
		}
		return entries[i].ID < entries[j].ID
	})
}
