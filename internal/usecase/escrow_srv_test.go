package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldFundsSplitsImmediateComponents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)

	payment := env.holdFunds(t, booking)

	assert.Equal(t, entity.PaymentStatusHeld, payment.Status)
	assert.True(t, payment.RoomFeeInEscrow)
	assert.True(t, payment.DepositInEscrow)
	assert.True(t, payment.CapturedAmount.Equal(dec("66100")))
	assert.Equal(t, 1, payment.Snapshot.ConfigVersion)
	assert.True(t, payment.Snapshot.EffectiveCommissionRate.Equal(dec("0.10")))

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPaid, stored.Status)

	// Cleaning fee lands with the operator, service fee with the
	// platform, immediately at capture.
	assert.True(t, env.operatorBalance(booking).Equal(dec("5000")),
		"operator balance %s", env.operatorBalance(booking))
	assert.True(t, env.platformBalance().Equal(dec("1100")),
		"platform balance %s", env.platformBalance())

	holds := env.events.byType(entity.EscrowEventHold)
	require.Len(t, holds, 2)
	splits := env.events.byType(entity.EscrowEventReleaseSplit)
	require.Len(t, splits, 2) // cleaning + service; zero platform fee skipped
}

func TestHoldFundsRejectsBreakdownMismatch(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedBooking(t)

	_, err := env.svc.Escrow.HoldFunds(context.Background(), booking.ID, dec("60000"), "PSK-TXN-1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHoldFundsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedBooking(t)

	first := env.holdFunds(t, booking)
	eventsBefore := len(env.events.events)

	second, err := env.svc.Escrow.HoldFunds(context.Background(), booking.ID, booking.TotalAmount(), "PSK-TXN-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.events.events, eventsBefore, "replay must not append events")
	assert.True(t, env.operatorBalance(booking).Equal(dec("5000")), "replay must not re-credit")

	// A replay with a different amount is a conflict, not a new hold.
	_, err = env.svc.Escrow.HoldFunds(context.Background(), booking.ID, dec("70000"), "PSK-TXN-2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestHoldFundsConcurrentInsertIsConflict(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedBooking(t)

	// Two captures race past the existence check; UNIQUE(booking_id) on
	// payments rejects the second insert.
	env.payments.createErr = repository.ErrDuplicate

	_, err := env.svc.Escrow.HoldFunds(context.Background(), booking.ID, booking.TotalAmount(), "PSK-TXN-1")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestExecuteRoomFeeSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))

	// 90/10 at the snapshot rate: 45,000 operator, 5,000 platform,
	// on top of the immediate credits.
	assert.True(t, env.operatorBalance(booking).Equal(dec("50000")),
		"operator balance %s", env.operatorBalance(booking))
	assert.True(t, env.platformBalance().Equal(dec("6100")),
		"platform balance %s", env.platformBalance())

	payouts := env.gateway.transfersTo("payout")
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Equal(dec("45000")))

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, payment.RoomFeeInEscrow)
	assert.NotNil(t, payment.RoomFeeReleasedAt)
	assert.Equal(t, entity.PaymentStatusPartiallyReleased, payment.Status)
}

func TestExecuteRoomFeeSplitReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))

	assert.True(t, env.operatorBalance(booking).Equal(dec("50000")), "double release")
	assert.Len(t, env.gateway.transfersTo("payout"), 1)
}

func TestExecuteRoomFeeSplitBlockedByDispute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	require.NoError(t, env.disputes.Create(ctx, &entity.Dispute{
		Base:      entity.Base{ID: uuid.New()},
		BookingID: booking.ID,
		Subject:   entity.DisputeSubjectRoomFee,
		Status:    entity.DisputeStatusOpen,
	}))

	err := env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrReleaseBlocked)
	assert.True(t, env.operatorBalance(booking).Equal(dec("5000")), "nothing released")
}

func TestReleaseWithRefundSplitsRemainder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	require.NoError(t, env.svc.Escrow.ReleaseWithRefund(ctx, booking.ID, dec("25000")))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("25000")))

	// Remainder 25,000 splits 22,500 / 2,500.
	assert.True(t, env.operatorBalance(booking).Equal(dec("27500")),
		"operator balance %s", env.operatorBalance(booking))
	assert.True(t, env.platformBalance().Equal(dec("3600")),
		"platform balance %s", env.platformBalance())

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, payment.RoomFeeRefunded.Equal(dec("25000")))
}

func TestReleaseWithRefundRejectsOverclaim(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	err := env.svc.Escrow.ReleaseWithRefund(context.Background(), booking.ID, dec("50001"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDepositReleaseOrderedAfterRoomFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	err := env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrReleaseBlocked)

	payment, findErr := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, findErr)
	assert.True(t, payment.DepositInEscrow, "deposit must stay held")
}

func TestDepositReleaseFullRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	_, err := env.svc.Booking.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	_, err = env.svc.Booking.CheckOut(ctx, booking.ID)
	require.NoError(t, err)

	require.NoError(t, env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("10000")))

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, payment.DepositInEscrow)
	assert.Equal(t, entity.PaymentStatusSettled, payment.Status)

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, stored.Status)
}

func TestDepositReleaseKeepsRecordedDeduction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	_, err := env.svc.Booking.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	_, err = env.svc.Booking.CheckOut(ctx, booking.ID)
	require.NoError(t, err)

	// A resolved deposit dispute recorded a 6,000 deduction; the sweep
	// retry passes zero and must not clear it.
	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	payment.DepositDeduction = dec("6000")
	require.NoError(t, env.payments.Update(ctx, payment))

	require.NoError(t, env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("4000")), "guest refund %s", refunds[0].Amount)

	// Split credits 50,000 plus the 6,000 deduction.
	assert.True(t, env.operatorBalance(booking).Equal(dec("56000")),
		"operator balance %s", env.operatorBalance(booking))
}

func TestDepositReleaseRetryAfterSettleFailureRefundsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	_, err := env.svc.Booking.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	_, err = env.svc.Booking.CheckOut(ctx, booking.ID)
	require.NoError(t, err)

	// The settle write fails after the guest refund already went out.
	env.payments.updateErr = errors.New("connection reset")
	err = env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero)
	require.Error(t, err)

	// The aborted transaction leaves the deposit flags unchanged.
	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	payment.DepositInEscrow = true
	payment.DepositReleasedAt = nil
	payment.Status = entity.PaymentStatusPartiallyReleased

	// The sweep retry settles without paying the guest a second time.
	require.NoError(t, env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1, "guest must be refunded once")
	assert.True(t, refunds[0].Amount.Equal(dec("10000")))
	assert.Len(t, env.events.byType(entity.EscrowEventRefund), 1)

	payment, err = env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusSettled, payment.Status)
	assert.False(t, payment.DepositInEscrow)
}

func TestTransferFailureEscalatesToAdminReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	env.gateway.transferErr = errors.New("provider 500")

	for i := 0; i < 3; i++ {
		err := env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrProvider, "attempt %d", i+1)
	}

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, payment.ReleaseAttempts)
	assert.Equal(t, entity.PaymentStatusAdminReview, payment.Status)
	assert.True(t, payment.RoomFeeInEscrow, "funds stay held on failure")

	failures := env.events.byType(entity.EscrowEventTransferFailed)
	assert.Len(t, failures, 3)

	// Once parked for review, further sweep attempts are conflicts,
	// not more provider calls.
	err = env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancelWithRefundReversesImmediateCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	require.NoError(t, env.svc.Escrow.CancelWithRefund(ctx, booking.ID))

	refunds := env.gateway.transfersTo("refund")
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(dec("66100")), "full captured amount refunded")

	assert.True(t, env.operatorBalance(booking).IsZero(), "operator credit reversed")
	assert.True(t, env.platformBalance().IsZero(), "platform credit reversed")

	payment, err := env.payments.FindByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusRefunded, payment.Status)
	assert.False(t, payment.RoomFeeInEscrow)
	assert.False(t, payment.DepositInEscrow)

	// One refund event per non-zero component.
	refundEvents := env.events.byType(entity.EscrowEventRefund)
	assert.Len(t, refundEvents, 4) // room, cleaning, service, deposit
}

func TestCancelWithRefundRequiresHeldPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))

	err := env.svc.Escrow.CancelWithRefund(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

// Over a clean lifecycle every captured unit reaches exactly one party:
// operator and platform wallet credits plus guest refunds equal the
// captured amount.
func TestLifecycleConservesCapturedAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	_, err := env.svc.Booking.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Escrow.ExecuteRoomFeeSplit(ctx, booking.ID))
	_, err = env.svc.Booking.CheckOut(ctx, booking.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Escrow.ExecuteDepositRelease(ctx, booking.ID, decimal.Zero))

	refunded := decimal.Zero
	for _, tr := range env.gateway.transfersTo("refund") {
		refunded = refunded.Add(tr.Amount)
	}

	total := env.operatorBalance(booking).Add(env.platformBalance()).Add(refunded)
	assert.True(t, total.Equal(dec("66100")), "disbursed %s, captured 66100", total)

	// Wallet balances must match the transaction log.
	cached, derived, err := env.svc.Wallet.Reconcile(ctx, booking.OperatorID, entity.WalletOwnerOperator)
	require.NoError(t, err)
	assert.True(t, cached.Equal(derived), "cached %s derived %s", cached, derived)
}

func TestScheduleReleaseDeadlines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.seedBooking(t)
	env.holdFunds(t, booking)

	checkIn := testBaseTime.Add(2 * time.Hour)
	require.NoError(t, env.svc.Escrow.ScheduleRoomFeeRelease(ctx, booking.ID, checkIn))

	stored, err := env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RoomFeeReleaseEligibleAt)
	assert.Equal(t, checkIn.Add(24*time.Hour), *stored.RoomFeeReleaseEligibleAt)

	checkOut := checkIn.Add(72 * time.Hour)
	require.NoError(t, env.svc.Escrow.ScheduleDepositRelease(ctx, booking.ID, checkOut))

	stored, err = env.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DepositRefundEligibleAt)
	assert.Equal(t, checkOut.Add(48*time.Hour), *stored.DepositRefundEligibleAt)
}
