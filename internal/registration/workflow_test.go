package registration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"guardian-relay/internal/directory"
	"guardian-relay/internal/messenger"
	"guardian-relay/internal/models"
	"guardian-relay/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store     *store.MemoryStore
	cache     *directory.Cache
	pending   *MemoryPendingStore
	messenger *messenger.Memory
	workflow  *Workflow
}

func newFixture(t *testing.T, admins ...string) *fixture {
	ctx := context.Background()
	st := store.NewMemoryStore(store.DefaultSchemas())
	for _, id := range admins {
		require.NoError(t, st.AppendRow(ctx, models.SheetAdmins, models.Row{models.ColumnUserID: id}))
	}
	cache := directory.NewCache(st, nil, 0, zap.NewNop())
	require.NoError(t, cache.Refresh(ctx))

	pending := NewMemoryPendingStore()
	m := messenger.NewMemory()
	return &fixture{
		store:     st,
		cache:     cache,
		pending:   pending,
		messenger: m,
		workflow:  NewWorkflow(cache, pending, m, zap.NewNop()),
	}
}

const payload555 = "555;Jane;Principal;Lincoln HS;555-0100;j@x.org;1 Main St;maps://x"

func TestWorkflow_RegistrationScenario(t *testing.T) {
	f := newFixture(t, "900", "901")
	ctx := context.Background()

	state, err := f.workflow.RequestRegistration(ctx, "555", "Jane Doe", "")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, state)

	for _, admin := range []string{"900", "901"} {
		texts := f.messenger.TextsTo(admin)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "555")
		assert.Contains(t, texts[0], "/cadastrar 555;")
	}
	assert.Equal(t, []string{textRequestAck}, f.messenger.TextsTo("555"))

	res, err := f.workflow.Decide(ctx, "900", "555", models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, res.State)
	assert.Equal(t, "Jane Doe", res.DisplayName)

	_, err = f.cache.LookupUnit("555")
	assert.ErrorIs(t, err, models.ErrNotFound)

	rec, err := f.workflow.RegisterUnit(ctx, "900", payload555)
	require.NoError(t, err)

	got, err := f.cache.LookupUnit("555")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, "Lincoln HS", got.UnitName)
	assert.Equal(t, "maps://x", got.LocationLink)

	resolution, err := f.pending.Resolution(ctx, "555")
	require.NoError(t, err)
	assert.True(t, resolution.Registered)

	rows, err := f.store.ReadAllRows(ctx, models.SheetUnits)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "555", rows[0][models.ColumnUserID])
}

func TestWorkflow_RejectThenApprove(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()

	_, err := f.workflow.RequestRegistration(ctx, "777", "Joao", "")
	require.NoError(t, err)

	res, err := f.workflow.Decide(ctx, "900", "777", models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, res.State)
	assert.Contains(t, f.messenger.TextsTo("777"), textRejected)

	_, err = f.workflow.Decide(ctx, "900", "777", models.DecisionApprove)
	assert.ErrorIs(t, err, models.ErrAlreadyProcessed)

	_, err = f.cache.LookupUnit("777")
	assert.ErrorIs(t, err, models.ErrNotFound)

	state, err := f.workflow.State(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, state)
}

func TestWorkflow_RejectedSenderCanRequestAgain(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()

	_, err := f.workflow.RequestRegistration(ctx, "777", "Joao", "")
	require.NoError(t, err)
	_, err = f.workflow.Decide(ctx, "900", "777", models.DecisionReject)
	require.NoError(t, err)

	state, err := f.workflow.RequestRegistration(ctx, "777", "Joao", "")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, state)
	assert.Len(t, f.messenger.TextsTo("900"), 2)
}

func TestWorkflow_DuplicateRequestNotifiesOnce(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()

	_, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)
	state, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationPending, state)
	assert.Len(t, f.messenger.TextsTo("900"), 1)
	assert.Equal(t, []string{textRequestAck, textAlreadyPending}, f.messenger.TextsTo("555"))
}

func TestWorkflow_RequestWithoutAdministratorsStillAcknowledges(t *testing.T) {
	f := newFixture(t)

	state, err := f.workflow.RequestRegistration(context.Background(), "555", "Jane", "11 9999")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationPending, state)
	assert.Equal(t, []string{textRequestAck}, f.messenger.TextsTo("555"))
}

func TestWorkflow_RequestIgnoresAdministratorFailures(t *testing.T) {
	f := newFixture(t, "900", "901")
	f.messenger.FailText("900", errors.New("blocked"))

	_, err := f.workflow.RequestRegistration(context.Background(), "555", "Jane", "")
	require.NoError(t, err)

	assert.Len(t, f.messenger.TextsTo("901"), 1)
	assert.Equal(t, []string{textRequestAck}, f.messenger.TextsTo("555"))
}

func TestWorkflow_RequestFromExistingUnit(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	_, err := f.workflow.RegisterUnit(ctx, "900", payload555)
	require.NoError(t, err)

	state, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationApproved, state)
	assert.Empty(t, f.messenger.TextsTo("900"))
	_, err = f.pending.Get(ctx, "555")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkflow_RemovedUnitCanRequestAgain(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	_, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)
	_, err = f.workflow.Decide(ctx, "900", "555", models.DecisionApprove)
	require.NoError(t, err)
	_, err = f.workflow.RegisterUnit(ctx, "900", payload555)
	require.NoError(t, err)
	require.NoError(t, f.cache.RemoveUnit(ctx, "555"))

	state, err := f.workflow.State(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationNone, state)

	state, err = f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationPending, state)
	assert.Len(t, f.messenger.TextsTo("900"), 2)
	assert.Equal(t, textRequestAck, f.messenger.TextsTo("555")[len(f.messenger.TextsTo("555"))-1])
	_, err = f.workflow.Decide(ctx, "900", "555", models.DecisionApprove)
	assert.NoError(t, err)
}

func TestWorkflow_ApprovedButNotRegisteredStaysApproved(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	_, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)
	_, err = f.workflow.Decide(ctx, "900", "555", models.DecisionApprove)
	require.NoError(t, err)

	state, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationApproved, state)
	assert.Equal(t, textAlreadyApproved, f.messenger.TextsTo("555")[len(f.messenger.TextsTo("555"))-1])
	assert.Len(t, f.messenger.TextsTo("900"), 1)
}

// unitAppearsDirectory 第一次查询未命中后立即创建学校，模拟与 RegisterUnit 的竞争
type unitAppearsDirectory struct {
	*directory.Cache
	rec     models.UnitRecord
	created bool
}

func (d *unitAppearsDirectory) LookupUnit(unitID string) (models.UnitRecord, error) {
	rec, err := d.Cache.LookupUnit(unitID)
	if err != nil && !d.created {
		d.created = true
		if cerr := d.Cache.CreateUnit(context.Background(), d.rec); cerr != nil {
			return models.UnitRecord{}, cerr
		}
	}
	return rec, err
}

func TestWorkflow_RequestRacingRegisterUnit(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	rec, err := ParseUnit(payload555)
	require.NoError(t, err)
	dir := &unitAppearsDirectory{Cache: f.cache, rec: rec}
	w := NewWorkflow(dir, f.pending, f.messenger, zap.NewNop())

	state, err := w.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationApproved, state)
	assert.Equal(t, []string{textAlreadyUnit}, f.messenger.TextsTo("555"))
	assert.Empty(t, f.messenger.TextsTo("900"))
	_, err = f.pending.Get(ctx, "555")
	assert.ErrorIs(t, err, models.ErrNotFound)
	res, err := f.pending.Resolution(ctx, "555")
	require.NoError(t, err)
	assert.True(t, res.Registered)
}

func TestWorkflow_DecideRequiresAdministrator(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	_, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	_, err = f.workflow.Decide(ctx, "123", "555", models.DecisionApprove)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	state, err := f.workflow.State(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, state)
}

func TestWorkflow_DecideUnknownSender(t *testing.T) {
	f := newFixture(t, "900")

	_, err := f.workflow.Decide(context.Background(), "900", "404", models.DecisionReject)
	assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
}

func TestWorkflow_RegisterUnitMalformed(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()

	sevenFields := "555;Jane;Principal;Lincoln HS;555-0100;j@x.org;1 Main St"
	_, err := f.workflow.RegisterUnit(ctx, "900", sevenFields)
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Contains(t, err.Error(), RegisterUsage)

	_, err = f.workflow.RegisterUnit(ctx, "900", " ;Jane;Principal;Lincoln HS;555-0100;j@x.org;1 Main St;maps://x")
	assert.ErrorIs(t, err, models.ErrMalformedInput)

	rows, err := f.store.ReadAllRows(ctx, models.SheetUnits)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWorkflow_RegisterUnitRequiresAdministrator(t *testing.T) {
	f := newFixture(t, "900")

	_, err := f.workflow.RegisterUnit(context.Background(), "555", payload555)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestWorkflow_RegisterUnitDuplicate(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()

	_, err := f.workflow.RegisterUnit(ctx, "900", payload555)
	require.NoError(t, err)
	_, err = f.workflow.RegisterUnit(ctx, "900", payload555)
	assert.ErrorIs(t, err, models.ErrDuplicateUnit)

	rows, err := f.store.ReadAllRows(ctx, models.SheetUnits)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWorkflow_RegisterUnitClosesPendingRequest(t *testing.T) {
	f := newFixture(t, "900")
	ctx := context.Background()
	_, err := f.workflow.RequestRegistration(ctx, "555", "Jane", "")
	require.NoError(t, err)

	_, err = f.workflow.RegisterUnit(ctx, "900", payload555)
	require.NoError(t, err)

	_, err = f.pending.Get(ctx, "555")
	assert.ErrorIs(t, err, models.ErrNotFound)
	resolution, err := f.pending.Resolution(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, resolution.State)
	assert.True(t, resolution.Registered)
}

func TestWorkflow_RegisterUnitStoreUnavailable(t *testing.T) {
	f := newFixture(t, "900")
	f.store.SetUnavailable(true)

	_, err := f.workflow.RegisterUnit(context.Background(), "900", payload555)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)

	_, err = f.cache.LookupUnit("555")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestParseUnit_TrimsFields(t *testing.T) {
	rec, err := ParseUnit(" 555 ; Jane ;Principal;Lincoln HS;555-0100;j@x.org;1 Main St; maps://x ")
	require.NoError(t, err)
	assert.Equal(t, "555", rec.UnitID)
	assert.Equal(t, "Jane", rec.ContactName)
	assert.Equal(t, "maps://x", rec.LocationLink)
}

func TestFormatRequest_EscapesName(t *testing.T) {
	text := FormatRequest(models.PendingRegistration{SenderID: "555", DisplayName: "jane_doe"})

	assert.Contains(t, text, `jane\_doe`)
	assert.Contains(t, text, models.NotInformed)
	assert.True(t, strings.Contains(text, "/aprovar 555"))
}
