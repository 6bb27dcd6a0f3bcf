package reconciler

import (
	"context"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/matcher"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cronNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type cronFixture struct {
	st       *store.MemoryStore
	runner   *CronRunner
	triggers int
}

func newCronFixture(t *testing.T, config *CronConfig) *cronFixture {
	t.Helper()

	f := &cronFixture{st: store.NewMemoryStore()}

	engine, err := matcher.NewEngine(f.st, nil)
	require.NoError(t, err)

	runner, err := NewCronRunner(f.st, engine, NewApplier(f.st),
		SchedulerFunc(func() { f.triggers++ }), config)
	require.NoError(t, err)
	runner.now = func() time.Time { return cronNow }

	f.runner = runner
	return f
}

func (f *cronFixture) addCompany(id int64) *models.Company {
	c := &models.Company{ID: id, Name: "Test Co"}
	f.st.AddCompany(c)
	return c
}

func (f *cronFixture) addAutoModel(id, companyID int64) {
	f.st.AddModel(&models.ReconcileModel{
		ID:            id,
		CompanyID:     companyID,
		Name:          "Invoice matching",
		Sequence:      10,
		RuleType:      models.RuleInvoiceMatching,
		AutoReconcile: true,
		ToleranceType: models.TolerancePercentage,
		MatchingOrder: models.OrderOldFirst,
		TextFields:    []models.TextField{models.FieldPaymentRef},
	})
}

func (f *cronFixture) addLine(id, companyID int64, ref string, date time.Time) *models.StatementLine {
	sl := &models.StatementLine{
		ID:         id,
		CompanyID:  companyID,
		PartnerID:  7,
		Amount:     decimal.NewFromInt(1000),
		Currency:   "USD",
		Date:       date,
		PaymentRef: ref,
	}
	f.st.AddLine(sl)
	return sl
}

func (f *cronFixture) addOpenEntry(id, companyID int64, label string) *models.LedgerEntry {
	le := &models.LedgerEntry{
		ID:          id,
		CompanyID:   companyID,
		PartnerID:   7,
		AccountType: models.AccountReceivable,
		Label:       label,
		Residual:    decimal.NewFromInt(1000),
		Currency:    "USD",
		Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	f.st.AddEntry(le)
	return le
}

func TestAutoReconcileNoCompaniesIsNoOp(t *testing.T) {
	f := newCronFixture(t, nil)

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.CompaniesScanned)
	assert.Zero(t, summary.LinesChecked)
	assert.False(t, summary.Retriggered)
	assert.Zero(t, f.triggers)
}

func TestAutoReconcileFullPass(t *testing.T) {
	f := newCronFixture(t, nil)
	f.addCompany(1)
	f.addAutoModel(1, 1)
	line := f.addLine(1, 1, "INV/2024-0042", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	entry := f.addOpenEntry(11, 1, "INV/2024-0042")

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CompaniesScanned)
	assert.Equal(t, 1, summary.LinesChecked)
	assert.Equal(t, 1, summary.LinesReconciled)
	assert.NotEmpty(t, summary.RunID)

	assert.True(t, line.Reconciled)
	assert.Equal(t, line.ID, entry.ReconciledWith)
	require.NotNil(t, line.LastChecked)
	assert.True(t, line.LastChecked.Equal(cronNow))

	messages, err := f.st.AuditMessages(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "automatically reconciled")
}

func TestAutoReconcileSecondRunFindsNothing(t *testing.T) {
	f := newCronFixture(t, nil)
	f.addCompany(1)
	f.addAutoModel(1, 1)
	f.addLine(1, 1, "INV/2024-0042", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addOpenEntry(11, 1, "INV/2024-0042")

	_, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.LinesChecked)
	assert.Zero(t, summary.LinesReconciled)
	assert.Zero(t, f.triggers)
}

func TestAutoReconcileStampsUnmatchedLines(t *testing.T) {
	f := newCronFixture(t, nil)
	f.addCompany(1)
	f.addAutoModel(1, 1)
	line := f.addLine(1, 1, "no such reference", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LinesChecked)
	assert.Zero(t, summary.LinesReconciled)
	assert.False(t, line.Reconciled)
	require.NotNil(t, line.LastChecked, "unmatched lines must still be stamped")
}

func TestAutoReconcileFloorDateBoundary(t *testing.T) {
	f := newCronFixture(t, nil)
	f.addCompany(1)
	f.addAutoModel(1, 1)

	// cronNow is 2024-06-15 10:30 UTC. The three month lookback floor is
	// the calendar date 2024-03-15: a line dated that day is eligible
	// regardless of the run's time of day, one day earlier is not.
	boundary := f.addLine(1, 1, "x", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	tooOld := f.addLine(2, 1, "y", time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LinesChecked)
	assert.NotNil(t, boundary.LastChecked)
	assert.Nil(t, tooOld.LastChecked)
}

func TestAutoReconcileRespectsFiscalLockDate(t *testing.T) {
	f := newCronFixture(t, nil)
	company := f.addCompany(1)
	company.FiscalLockDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.addAutoModel(1, 1)

	locked := f.addLine(1, 1, "x", time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC))
	open := f.addLine(2, 1, "y", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LinesChecked)
	assert.Nil(t, locked.LastChecked)
	assert.NotNil(t, open.LastChecked)
}

func TestAutoReconcileRetriggersWhenProductiveAndWorkRemains(t *testing.T) {
	f := newCronFixture(t, &CronConfig{BatchSize: 2})
	f.addCompany(1)
	f.addAutoModel(1, 1)

	// Three eligible lines, batch budget of two. The first line
	// reconciles, so the run was productive and must reschedule itself
	// for the remaining line.
	f.addLine(1, 1, "INV/2024-0042", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addLine(2, 1, "nothing matches this", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	f.addLine(3, 1, "nor this", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	f.addOpenEntry(11, 1, "INV/2024-0042")

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LinesChecked)
	assert.Equal(t, 1, summary.LinesReconciled)
	assert.True(t, summary.MoreRemaining)
	assert.True(t, summary.Retriggered)
	assert.Equal(t, 1, f.triggers)
}

func TestAutoReconcileNoRetriggerOnUnproductiveRun(t *testing.T) {
	f := newCronFixture(t, &CronConfig{BatchSize: 2})
	f.addCompany(1)
	f.addAutoModel(1, 1)

	// Work remains after the batch, but nothing reconciled: retriggering
	// would spin forever on the same unmatched lines.
	f.addLine(1, 1, "nothing matches", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addLine(2, 1, "nor this", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	f.addLine(3, 1, "nor that", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LinesChecked)
	assert.Zero(t, summary.LinesReconciled)
	assert.True(t, summary.MoreRemaining)
	assert.False(t, summary.Retriggered)
	assert.Zero(t, f.triggers)
}

func TestAutoReconcileNoRetriggerWhenNothingRemains(t *testing.T) {
	f := newCronFixture(t, &CronConfig{BatchSize: 10})
	f.addCompany(1)
	f.addAutoModel(1, 1)
	f.addLine(1, 1, "INV/2024-0042", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addOpenEntry(11, 1, "INV/2024-0042")

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LinesReconciled)
	assert.False(t, summary.MoreRemaining)
	assert.False(t, summary.Retriggered)
	assert.Zero(t, f.triggers)
}

func TestAutoReconcileOrdersLeastRecentlyCheckedFirst(t *testing.T) {
	f := newCronFixture(t, &CronConfig{BatchSize: 1})
	f.addCompany(1)
	f.addAutoModel(1, 1)

	checked := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	stale := f.addLine(1, 1, "a", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	stale.LastChecked = &checked
	fresh := f.addLine(2, 1, "b", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	// The never-checked line goes first even though its ID is higher.
	assert.Equal(t, 1, summary.LinesChecked)
	require.NotNil(t, fresh.LastChecked)
	assert.True(t, fresh.LastChecked.Equal(cronNow))
	assert.True(t, stale.LastChecked.Equal(checked), "budgeted-out line must keep its old stamp")
}

func TestAutoReconcileBudgetSpansCompanies(t *testing.T) {
	f := newCronFixture(t, &CronConfig{BatchSize: 1})
	f.addCompany(1)
	f.addCompany(2)
	f.addAutoModel(1, 1)
	f.addAutoModel(2, 2)

	f.addLine(1, 1, "INV/2024-0042", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addOpenEntry(11, 1, "INV/2024-0042")
	second := f.addLine(2, 2, "whatever", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	summary, err := f.runner.AutoReconcile(context.Background())
	require.NoError(t, err)

	// The budget is spent on company 1; company 2 is only probed, but
	// its pending line must still surface as remaining work.
	assert.Equal(t, 2, summary.CompaniesScanned)
	assert.Equal(t, 1, summary.LinesChecked)
	assert.Equal(t, 1, summary.LinesReconciled)
	assert.True(t, summary.MoreRemaining)
	assert.True(t, summary.Retriggered)
	assert.Nil(t, second.LastChecked)
}
