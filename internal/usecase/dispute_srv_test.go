package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/dto/request"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkedInBooking seeds a captured booking with the guest checked in, so
// the room-fee dispute window (until release eligibility) is open.
func checkedInBooking(t *testing.T, env *testEnv) *entity.Booking {
	t.Helper()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)
	_, err := env.svc.Booking.CheckIn(context.Background(), booking.ID)
	require.NoError(t, err)
	return booking
}

// checkedOutBooking additionally settles the room fee and checks out, so
// the deposit dispute window is open.
func checkedOutBooking(t *testing.T, env *testEnv) *entity.Booking {
	t.Helper()
	booking := checkedInBooking(t, env)
	ctx := context.Background()
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	_, err := env.svc.Booking.CheckOut(ctx, booking.ID)
	require.NoError(t, err)
	return booking
}

func openRoomFeeDispute(t *testing.T, env *testEnv, booking *entity.Booking, category, claim string) *entity.Dispute {
	t.Helper()
	dispute, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      category,
		ClaimedAmount: dec(claim),
	})
	require.NoError(t, err)
	return dispute
}

func TestOpenRoomFeeDispute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)

	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	// The responder is notified at open, so the dispute is already
	// awaiting a response.
	assert.Equal(t, entity.DisputeStatusAwaitingResponse, dispute.Status)
	assert.True(t, dispute.MaxRefundPercent.Equal(dec("0.50")), "ceiling snapshot")
	assert.Equal(t, testBaseTime.Add(72*time.Hour), dispute.RespondBy)

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusDisputeOpened, stored.Status)
}

func TestOpenDisputePartyEnforcement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)

	_, err := env.svc.Dispute.Open(ctx, &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "operator",
		Subject:       "room_fee",
		Category:      "major_issue",
		ClaimedAmount: dec("1000"),
	})
	assert.ErrorIs(t, err, ErrValidation, "operators cannot dispute the room fee")

	_, err = env.svc.Dispute.Open(ctx, &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "deposit",
		Category:      "minor_damage",
		ClaimedAmount: dec("1000"),
	})
	assert.ErrorIs(t, err, ErrValidation, "guests cannot dispute the deposit")
}

func TestOpenDisputeWindowClosed(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)

	// Past the room-fee release deadline the claim window is shut.
	env.freeze(testBaseTime.Add(25 * time.Hour))

	_, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      "major_issue",
		ClaimedAmount: dec("1000"),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOpenDisputeSingleOpenPerSubject(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)
	openRoomFeeDispute(t, env, booking, "major_issue", "10000")

	_, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      "major_issue",
		ClaimedAmount: dec("5000"),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOpenDisputeUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)

	_, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      "bad_vibes",
		ClaimedAmount: dec("1000"),
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestOpenDisputeClaimAboveSubjectAmount(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)

	_, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      "major_issue",
		ClaimedAmount: dec("60000"),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRespondAcceptAwardsAtCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	resolved, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionAccept)
	require.NoError(t, err)

	assert.Equal(t, entity.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.FinalOutcome)
	assert.Equal(t, entity.OutcomeRefundIssued, *resolved.FinalOutcome)
	// 30,000 claimed, capped at 50% of the 50,000 room fee.
	require.NotNil(t, resolved.ApprovedAmount)
	assert.True(t, resolved.ApprovedAmount.Equal(dec("25000")), "award %s", resolved.ApprovedAmount)

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("25000")))

	// Remainder released: operator 5,000 cleaning + 22,500 share.
	assert.True(t, env.operatorBalance(booking).Equal(dec("27500")),
		"operator balance %s", env.operatorBalance(booking))

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCheckedIn, stored.Status, "dispute marker lifted")
}

func TestRespondAcceptAbortsWhenBookingUnreadable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "50000")

	// A transient booking lookup failure must abort the resolution; the
	// claim is never awarded uncapped.
	env.bookings.findErr = errors.New("connection reset")
	_, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionAccept)
	require.Error(t, err)
	assert.Empty(t, env.gateway.transfersTo("refund"), "no money moves on a failed cap")

	stored, err := env.disputes.FindByID(ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DisputeStatusAwaitingResponse, stored.Status)
	assert.Nil(t, stored.ApprovedAmount)

	// Once the fault clears, the same accept awards at the ceiling.
	env.bookings.findErr = nil
	resolved, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionAccept)
	require.NoError(t, err)
	require.NotNil(t, resolved.ApprovedAmount)
	assert.True(t, resolved.ApprovedAmount.Equal(dec("25000")), "award %s", resolved.ApprovedAmount)
}

func TestOpenDisputeConcurrentInsertIsConflict(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)

	// Two opens race past FindBlocking; the partial unique index rejects
	// the second insert.
	env.disputes.createErr = repository.ErrDuplicate

	_, err := env.svc.Dispute.Open(context.Background(), &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "guest",
		Subject:       "room_fee",
		Category:      "major_issue",
		ClaimedAmount: dec("1000"),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRespondRejectEscalates(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	escalated, err := env.svc.Dispute.Respond(context.Background(), dispute.ID, entity.ResponderActionRejectEscalate)
	require.NoError(t, err)

	assert.Equal(t, entity.DisputeStatusEscalated, escalated.Status)
	require.NotNil(t, escalated.EscalateBy)
	assert.Equal(t, testBaseTime.Add(168*time.Hour), *escalated.EscalateBy)

	// The escalated dispute still blocks the room fee.
	err = env.svc.Escrow.ExecuteRoomFeeSplit(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrReleaseBlocked)
}

func TestRespondAfterDeadlineRejected(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	env.freeze(testBaseTime.Add(73 * time.Hour))
	_, err := env.svc.Dispute.Respond(context.Background(), dispute.ID, entity.ResponderActionAccept)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDecidePartialRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	_, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionRejectEscalate)
	require.NoError(t, err)

	amount := dec("10000")
	resolved, err := env.svc.Dispute.Decide(ctx, dispute.ID, entity.AdminDecisionPartialRefund, &amount)
	require.NoError(t, err)

	require.NotNil(t, resolved.ApprovedAmount)
	assert.True(t, resolved.ApprovedAmount.Equal(dec("10000")))
	require.NotNil(t, resolved.FinalOutcome)
	assert.Equal(t, entity.OutcomePartialRefund, *resolved.FinalOutcome)

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, payment.RoomFeeRefunded.Equal(dec("10000")))
}

func TestDecideNoRefundMovesNoMoney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	_, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionRejectEscalate)
	require.NoError(t, err)

	resolved, err := env.svc.Dispute.Decide(ctx, dispute.ID, entity.AdminDecisionNoRefund, nil)
	require.NoError(t, err)
	require.NotNil(t, resolved.FinalOutcome)
	assert.Equal(t, entity.OutcomeRefundDenied, *resolved.FinalOutcome)

	// The denied claim does not release early; the sweep does that at
	// the original deadline.
	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, payment.RoomFeeInEscrow)
	assert.Empty(t, env.gateway.transfersTo("refund"))

	// The resolved dispute no longer blocks the split.
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	assert.True(t, env.operatorBalance(booking).Equal(dec("50000")))
}

func TestDecideRequiresEscalated(t *testing.T) {
	env := newTestEnv(t)
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	_, err := env.svc.Dispute.Decide(context.Background(), dispute.ID, entity.AdminDecisionFullRefund, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancelDisputeRestoresBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	cancelled, err := env.svc.Dispute.Cancel(ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DisputeStatusCancelled, cancelled.Status)

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCheckedIn, stored.Status)

	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
}

func TestResolveExpiredAutoAcceptsAtCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedInBooking(t, env)
	dispute := openRoomFeeDispute(t, env, booking, "major_issue", "30000")

	// Operator never responds; the response deadline passes.
	env.freeze(testBaseTime.Add(73 * time.Hour))

	resolved, err := env.svc.Dispute.ResolveExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	stored, err := env.disputes.FindByID(ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DisputeStatusResolved, stored.Status)
	require.NotNil(t, stored.FinalOutcome)
	assert.Equal(t, entity.OutcomeAutoAccepted, *stored.FinalOutcome)
	require.NotNil(t, stored.ApprovedAmount)
	assert.True(t, stored.ApprovedAmount.Equal(dec("25000")), "claim conceded at the ceiling")

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("25000")))
}

func TestDepositDisputeDeductsFromRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := checkedOutBooking(t, env)

	dispute, err := env.svc.Dispute.Open(ctx, &request.OpenDispute{
		BookingID:     booking.ID.String(),
		OpenedBy:      "operator",
		Subject:       "deposit",
		Category:      "minor_damage",
		ClaimedAmount: dec("6000"),
	})
	require.NoError(t, err)

	// Deposit dispute blocks the deposit sweep.
	err = env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, dec("0"))
	assert.ErrorIs(t, err, ErrReleaseBlocked)

	resolved, err := env.svc.Dispute.Respond(ctx, dispute.ID, entity.ResponderActionAccept)
	require.NoError(t, err)
	// 6,000 claimed, capped at 50% of the 10,000 deposit.
	require.NotNil(t, resolved.ApprovedAmount)
	assert.True(t, resolved.ApprovedAmount.Equal(dec("5000")), "award %s", resolved.ApprovedAmount)

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusSettled, payment.Status)
	assert.True(t, payment.DepositDeduction.Equal(dec("5000")))

	// Operator: 50,000 from the room-fee leg plus the 5,000 deduction.
	assert.True(t, env.operatorBalance(booking).Equal(dec("55000")),
		"operator balance %s", env.operatorBalance(booking))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("5000")), "guest gets the remainder")
}
