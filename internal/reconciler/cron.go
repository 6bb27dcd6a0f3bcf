package reconciler

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/metrics"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/store"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/google/uuid"
)

// lookbackMonths bounds auto-processing: lines older than three months
// are never touched, to avoid reopening closed periods.
const lookbackMonths = 3

// Scheduler is the "run this job again as soon as possible" primitive
// of the external job scheduler.
type Scheduler interface {
	Trigger()
}

// SchedulerFunc adapts a function to the Scheduler interface
type SchedulerFunc func()

// Trigger implements Scheduler
func (f SchedulerFunc) Trigger() { f() }

// CronConfig holds batch runner settings
type CronConfig struct {
	// BatchSize caps the number of lines processed per invocation.
	// Zero means unlimited.
	BatchSize int
}

// DefaultCronConfig returns the default batch runner configuration
func DefaultCronConfig() *CronConfig {
	return &CronConfig{BatchSize: 100}
}

// Validate validates the cron configuration
func (c *CronConfig) Validate() error {
	if c.BatchSize < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "batch_size", nil).
			WithContext("value", c.BatchSize)
	}
	return nil
}

// RunSummary aggregates what one cron invocation did
type RunSummary struct {
	RunID            string        `json:"run_id"`
	CompaniesScanned int           `json:"companies_scanned"`
	LinesChecked     int           `json:"lines_checked"`
	LinesReconciled  int           `json:"lines_reconciled"`
	MoreRemaining    bool          `json:"more_remaining"`
	Retriggered      bool          `json:"retriggered"`
	Duration         time.Duration `json:"duration"`
}

// CronRunner iterates over unreconciled statement lines across
// companies, applies the auto-reconcile rules, and reschedules itself
// if productive work remains.
type CronRunner struct {
	store   store.Store
	engine  *matcher.Engine
	applier *Applier
	sched   Scheduler
	config  *CronConfig
	log     logger.Logger

	// now is injectable for floor-date tests
	now func() time.Time
}

// NewCronRunner creates a batch runner
func NewCronRunner(st store.Store, engine *matcher.Engine, applier *Applier, sched Scheduler, config *CronConfig) (*CronRunner, error) {
	if config == nil {
		config = DefaultCronConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &CronRunner{
		store:   st,
		engine:  engine,
		applier: applier,
		sched:   sched,
		config:  config,
		log:     logger.WithComponent("cron"),
		now:     time.Now,
	}, nil
}

// AutoReconcile runs one batch. Companies without active auto rules are
// skipped; with no eligible company at all the invocation is a quiet
// no-op. Every processed line gets its last-checked timestamp stamped,
// whether or not it reconciled, so failing lines are deprioritized on
// the next pass instead of retried immediately.
func (c *CronRunner) AutoReconcile(ctx context.Context) (*RunSummary, error) {
	start := c.now()
	summary := &RunSummary{RunID: uuid.NewString()}
	log := c.log.WithField("run_id", summary.RunID)

	companies, err := c.store.CompaniesWithAutoRules(ctx)
	if err != nil {
		return summary, err
	}
	if len(companies) == 0 {
		log.Debug("no company has active auto-reconcile rules, nothing to do")
		return summary, nil
	}

	budget := c.config.BatchSize
	today := start

	for _, company := range companies {
		rules, err := c.store.ModelsForCompany(ctx, company.ID)
		if err != nil {
			return summary, err
		}
		if !hasAutoRule(rules) {
			continue
		}
		summary.CompaniesScanned++

		floor := floorDate(today, company)

		if c.config.BatchSize > 0 && budget <= 0 {
			// Budget exhausted: probe whether work remains so the
			// retrigger decision stays accurate.
			probe, _, err := c.store.UnreconciledLines(ctx, company.ID, floor, 1)
			if err != nil {
				return summary, err
			}
			if len(probe) > 0 {
				summary.MoreRemaining = true
			}
			continue
		}

		lines, more, err := c.store.UnreconciledLines(ctx, company.ID, floor, budget)
		if err != nil {
			return summary, err
		}
		if more {
			summary.MoreRemaining = true
		}

		for _, line := range lines {
			if c.config.BatchSize > 0 {
				budget--
			}
			applied, err := c.processLine(ctx, line, rules)
			if err != nil {
				return summary, err
			}
			summary.LinesChecked++
			metrics.LinesChecked.Inc()
			if applied {
				summary.LinesReconciled++
				metrics.LinesReconciled.Inc()
			}
		}
	}

	// Self-feeding loop: reschedule only when this round was productive
	// and work remains, never on a fully unproductive round.
	if summary.LinesReconciled > 0 && summary.MoreRemaining {
		summary.Retriggered = true
		metrics.Retriggers.Inc()
		c.sched.Trigger()
	}

	summary.Duration = c.now().Sub(start)
	metrics.RunDuration.Observe(summary.Duration.Seconds())
	log.WithFields(logger.Fields{
		"companies":  summary.CompaniesScanned,
		"checked":    summary.LinesChecked,
		"reconciled": summary.LinesReconciled,
		"retrigger":  summary.Retriggered,
	}).Info("auto-reconcile batch finished")

	return summary, nil
}

// processLine evaluates the rules for one line and posts when
// permitted. Matching failures are silent: the line is stamped checked
// and retried on a later schedule.
func (c *CronRunner) processLine(ctx context.Context, line *models.StatementLine, rules []*models.ReconcileModel) (bool, error) {
	applied := false

	result, err := c.engine.Evaluate(ctx, line, rules)
	if err != nil {
		c.log.WithError(err).WithField("line_id", line.ID).Warn("rule evaluation failed")
	} else {
		outcome, err := c.applier.Reconcile(ctx, line, result)
		if err != nil {
			return false, err
		}
		applied = outcome == OutcomeApplied
	}

	if err := c.store.TouchLastChecked(ctx, line.ID, c.now()); err != nil {
		return applied, err
	}
	return applied, nil
}

// floorDate computes the oldest date the cron may touch for a company:
// max(today minus three months, the company's fiscal-year lock date).
// The lookback boundary is a calendar date, so a line dated exactly
// three months ago is still eligible regardless of time of day.
func floorDate(today time.Time, company *models.Company) time.Time {
	floor := today.AddDate(0, -lookbackMonths, 0)
	floor = time.Date(floor.Year(), floor.Month(), floor.Day(), 0, 0, 0, 0, floor.Location())
	if company.FiscalLockDate.After(floor) {
		floor = company.FiscalLockDate
	}
	return floor
}

func hasAutoRule(rules []*models.ReconcileModel) bool {
	for _, rm := range rules {
		if rm.AutoReconcile && rm.RuleType.IsValid() {
			return true
		}
	}
	return false
}
