// Package reconciler applies candidate sets to statement lines and
// drives the periodic auto-reconcile batch runner.
//
// The Applier owns the per-line state machine: an unreconciled line
// becomes reconciled exactly once, atomically with the settling
// postings, and is terminal afterwards. The CronRunner scans companies
// with active auto-reconcile rules, processes their unreconciled lines
// in least-recently-checked order, and retriggers itself while
// productive work remains.
package reconciler

import (
	"context"
	"fmt"
	"strings"

	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/store"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// Outcome is the typed result of one reconciliation attempt
type Outcome int

const (
	// OutcomeNoMatch means no rule produced candidates.
	OutcomeNoMatch Outcome = iota

	// OutcomeSuggestionOnly means candidates exist but auto-reconcile
	// was not permitted; they are surfaced for manual review only.
	OutcomeSuggestionOnly

	// OutcomeOutOfTolerance means the candidates do not collectively
	// clear the tolerance-adjusted balance; nothing was applied.
	OutcomeOutOfTolerance

	// OutcomeApplied means the line was reconciled and postings made.
	OutcomeApplied

	// OutcomeAlreadyReconciled means the line was terminal before the
	// attempt (possibly settled by a concurrent worker). A no-op.
	OutcomeAlreadyReconciled
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeSuggestionOnly:
		return "suggestion_only"
	case OutcomeOutOfTolerance:
		return "out_of_tolerance"
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyReconciled:
		return "already_reconciled"
	default:
		return "unknown"
	}
}

// Applier posts reconciliations for chosen candidate sets
type Applier struct {
	store store.Store
	log   logger.Logger
}

// NewApplier creates a reconciliation applier
func NewApplier(st store.Store) *Applier {
	return &Applier{
		store: st,
		log:   logger.WithComponent("applier"),
	}
}

// Reconcile decides whether to auto-post a reconciliation for the line
// given one rule evaluation result, and guarantees idempotence. All
// failure outcomes leave the line untouched (all-or-nothing); only
// OutcomeApplied mutates state.
func (a *Applier) Reconcile(ctx context.Context, line *models.StatementLine, result *matcher.CandidateResult) (Outcome, error) {
	if line.Reconciled {
		return OutcomeAlreadyReconciled, nil
	}

	if result == nil {
		return OutcomeNoMatch, nil
	}

	if !result.AllowAutoReconcile {
		return OutcomeSuggestionOnly, nil
	}

	if !a.balanceCleared(line, result) {
		a.log.WithFields(logger.Fields{
			"line_id": line.ID,
			"model":   result.Model.Name,
		}).Debug("candidates do not clear tolerance-adjusted balance")
		return OutcomeOutOfTolerance, nil
	}

	entryIDs := make([]int64, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entryIDs = append(entryIDs, entry.ID)
	}

	app := &store.Application{
		LineID:    line.ID,
		EntryIDs:  entryIDs,
		AuditNote: auditNote(result.Model),
	}
	if result.Writeoff != nil {
		app.Writeoff = &store.WriteoffPosting{
			Account: result.Writeoff.Account,
			Amount:  result.Writeoff.Amount,
		}
	}

	if err := a.store.ApplyReconciliation(ctx, app); err != nil {
		if errors.HasCode(err, errors.CodeAlreadyReconciled) {
			// A concurrent worker got there first; the line is settled
			// either way.
			return OutcomeAlreadyReconciled, nil
		}
		return OutcomeNoMatch, errors.ReconciliationError(errors.CodeProcessingError, "apply", err).
			WithContext("line_id", line.ID)
	}

	line.Reconciled = true
	a.log.WithFields(logger.Fields{
		"line_id": line.ID,
		"model":   result.Model.Name,
		"entries": len(entryIDs),
	}).Info("statement line auto-reconciled")

	return OutcomeApplied, nil
}

// balanceCleared checks that the candidate residuals settle the line
// amount within the model's tolerance. A write-off spec absorbs the
// remaining gap by definition.
func (a *Applier) balanceCleared(line *models.StatementLine, result *matcher.CandidateResult) bool {
	if result.Writeoff != nil {
		return true
	}

	total := decimal.Zero
	for _, entry := range result.Entries {
		total = total.Add(entry.Residual.Abs())
	}

	tolerance := matcher.ToleranceAmount(result.Model, line.Amount)
	return models.CompareAmountsWithTolerance(line.Amount.Abs(), total, tolerance)
}

// auditNote builds the human-readable message appended to the journal
// entry's message log on successful auto-reconciliation.
func auditNote(model *models.ReconcileModel) string {
	name := strings.TrimSpace(model.Name)
	if name == "" {
		name = fmt.Sprintf("model #%d", model.ID)
	}
	return fmt.Sprintf("This transaction was automatically reconciled using reconciliation model %q.", name)
}
