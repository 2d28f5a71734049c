package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/admission"
	"github.com/chwlink/commodity-engine/review"
	"github.com/chwlink/commodity-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type env struct {
	store       *sqlite.Store
	svc         *review.Service
	chaID       int64
	otherCHAID  int64
	chwID       int64
	commodityID int64
}

func newEnv(t *testing.T) *env {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	e := &env{store: store, svc: review.NewService(store, nil)}

	chuID, err := store.SaveCHU(ctx, sqlite.CHU{Name: "Kibera CHU"})
	require.NoError(t, err)

	cha, err := store.CreateCHA(ctx, accounts.CHA{Name: "Grace", Email: "grace@example.com", PasswordHash: "x", CHUID: &chuID})
	require.NoError(t, err)
	e.chaID = cha.ID

	other, err := store.CreateCHA(ctx, accounts.CHA{Name: "Wanjiru", Email: "wanjiru@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	e.otherCHAID = other.ID

	chw, err := store.CreateCHW(ctx, accounts.CHW{Name: "Otieno", Email: "otieno@example.com", PasswordHash: "x", CHUID: chuID, CHAID: &e.chaID, Approved: true})
	require.NoError(t, err)
	e.chwID = chw.ID

	e.commodityID, err = store.SaveCommodity(ctx, "ORS Sachets")
	require.NoError(t, err)

	return e
}

func (e *env) pending(t *testing.T, day int) admission.Request {
	req, err := e.store.InsertRequest(context.Background(), admission.NewRequest{
		CHWID:       e.chwID,
		CommodityID: e.commodityID,
		Quantity:    10,
		RequestDate: time.Date(2025, time.March, day, 9, 0, 0, 0, time.Local),
		Status:      admission.StatusPending,
	})
	require.NoError(t, err)
	return req
}

// =============================================================================
// DECIDE TESTS
// =============================================================================

func TestDecide_Approve(t *testing.T) {
	// GIVEN: A pending request from a supervised CHW
	e := newEnv(t)
	req := e.pending(t, 15)

	// WHEN: The CHA approves it
	detail, err := e.svc.Decide(context.Background(), e.chaID, req.ID, review.ActionApprove)

	// THEN: It is Approved
	require.NoError(t, err)
	assert.Equal(t, admission.StatusApproved, detail.Status)
	assert.Equal(t, "ORS Sachets", detail.CommodityName)
}

func TestDecide_Reject(t *testing.T) {
	e := newEnv(t)
	req := e.pending(t, 15)

	detail, err := e.svc.Decide(context.Background(), e.chaID, req.ID, review.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, admission.StatusRejected, detail.Status)
}

func TestDecide_InvalidAction(t *testing.T) {
	e := newEnv(t)
	req := e.pending(t, 15)

	_, err := e.svc.Decide(context.Background(), e.chaID, req.ID, review.Action("escalate"))
	assert.ErrorIs(t, err, review.ErrInvalidAction)
}

func TestDecide_NotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Decide(context.Background(), e.chaID, 9999, review.ActionApprove)
	assert.ErrorIs(t, err, review.ErrRequestNotFound)
}

func TestDecide_OutOfScope(t *testing.T) {
	// GIVEN: A request from a CHW supervised by another CHA
	e := newEnv(t)
	req := e.pending(t, 15)

	// WHEN: An unrelated CHA tries to approve it
	_, err := e.svc.Decide(context.Background(), e.otherCHAID, req.ID, review.ActionApprove)

	// THEN: It is refused and the request stays Pending
	assert.ErrorIs(t, err, review.ErrOutOfScope)
	detail, err := e.store.GetRequestDetail(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, admission.StatusPending, detail.Status)
}

func TestDecide_FinalStatusIsNeverReversed(t *testing.T) {
	// GIVEN: An approved request
	e := newEnv(t)
	ctx := context.Background()
	req := e.pending(t, 15)
	_, err := e.svc.Decide(ctx, e.chaID, req.ID, review.ActionApprove)
	require.NoError(t, err)

	// WHEN: The CHA tries to reject it afterwards
	_, err = e.svc.Decide(ctx, e.chaID, req.ID, review.ActionReject)

	// THEN: It is not pending any more
	assert.ErrorIs(t, err, review.ErrNotPending)
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestPendingFor(t *testing.T) {
	// GIVEN: Three requests, one already decided
	e := newEnv(t)
	ctx := context.Background()
	first := e.pending(t, 13)
	e.pending(t, 14)
	e.pending(t, 15)
	_, err := e.svc.Decide(ctx, e.chaID, first.ID, review.ActionReject)
	require.NoError(t, err)

	// WHEN: The CHA lists its queue
	queue, err := e.svc.PendingFor(ctx, e.chaID)
	require.NoError(t, err)

	// THEN: Only the two pending, newest first
	require.Len(t, queue, 2)
	assert.Equal(t, "2025-03-15", queue[0].Day().String())
	assert.Equal(t, "Otieno", queue[0].CHWName)

	// AND: Another CHA's queue is empty
	queue, err = e.svc.PendingFor(ctx, e.otherCHAID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestList_UnknownStatus(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.List(context.Background(), review.Filter{Status: "Lost"})
	assert.Error(t, err)
}

func TestAction_Status(t *testing.T) {
	s, err := review.ActionApprove.Status()
	require.NoError(t, err)
	assert.Equal(t, admission.StatusApproved, s)

	s, err = review.ActionReject.Status()
	require.NoError(t, err)
	assert.Equal(t, admission.StatusRejected, s)
}
