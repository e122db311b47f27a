package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/pkg/gateway"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// In-memory repository fakes. The Repository struct is built with a nil
// pool so WithinTx runs the callback against the same fakes.

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*entity.Booking
	volume   decimal.Decimal
	findErr  error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (f *fakeBookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.bookings[id], nil
}

func (f *fakeBookingRepo) FindByReference(_ context.Context, reference string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Reference == reference {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingRepo) Update(_ context.Context, booking *entity.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeBookingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeBookingRepo) FindByStatus(_ context.Context, status entity.BookingStatus, limit int) ([]*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Booking
	for _, b := range f.bookings {
		if b.Status == status && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) FindDueRoomFeeRelease(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range f.bookings {
		if b.RoomFeeReleaseEligibleAt != nil && !b.RoomFeeReleaseEligibleAt.After(now) && len(ids) < limit {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *fakeBookingRepo) FindDueDepositRelease(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range f.bookings {
		if b.DepositRefundEligibleAt != nil && !b.DepositRefundEligibleAt.After(now) && len(ids) < limit {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *fakeBookingRepo) FindDueAutoCheckIn(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range f.bookings {
		if b.Status == entity.BookingStatusPaid && b.CheckInDate.Before(cutoff) && len(ids) < limit {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *fakeBookingRepo) SumOperatorRoomFeeVolume(_ context.Context, _ uuid.UUID, _ time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, nil
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	payments  map[uuid.UUID]*entity.Payment
	createErr error
	updateErr error // consumed by the next Update call
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*entity.Payment)}
}

func (f *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[id], nil
}

func (f *fakePaymentRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		err := f.updateErr
		f.updateErr = nil
		return err
	}
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakePaymentRepo) UpdateStatus(_ context.Context, paymentID uuid.UUID, status entity.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[paymentID]; ok {
		p.Status = status
	}
	return nil
}

type fakeDisputeRepo struct {
	mu        sync.Mutex
	disputes  map[uuid.UUID]*entity.Dispute
	createErr error
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: make(map[uuid.UUID]*entity.Dispute)}
}

func (f *fakeDisputeRepo) Create(_ context.Context, dispute *entity.Dispute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.disputes[dispute.ID] = dispute
	return nil
}

func (f *fakeDisputeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disputes[id], nil
}

func (f *fakeDisputeRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Dispute
	for _, d := range f.disputes {
		if d.BookingID == bookingID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDisputeRepo) Update(_ context.Context, dispute *entity.Dispute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disputes[dispute.ID] = dispute
	return nil
}

func (f *fakeDisputeRepo) FindBlocking(_ context.Context, bookingID uuid.UUID, subject entity.DisputeSubject) (*entity.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.disputes {
		if d.BookingID == bookingID && d.Subject == subject && d.Blocking() {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDisputeRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]*entity.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Dispute
	for _, d := range f.disputes {
		if len(out) >= limit {
			break
		}
		switch d.Status {
		case entity.DisputeStatusOpen, entity.DisputeStatusAwaitingResponse:
			if !d.RespondBy.After(now) {
				out = append(out, d)
			}
		case entity.DisputeStatusEscalated:
			if d.EscalateBy != nil && !d.EscalateBy.After(now) {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

type fakeEscrowEventRepo struct {
	mu     sync.Mutex
	events []*entity.EscrowEvent
}

func (f *fakeEscrowEventRepo) Create(_ context.Context, event *entity.EscrowEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEscrowEventRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.EscrowEvent
	for _, e := range f.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEscrowEventRepo) SumByPaymentAndTypes(_ context.Context, paymentID uuid.UUID, component entity.EscrowComponent, types []entity.EscrowEventType) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, e := range f.events {
		if e.PaymentID != paymentID || e.Component != component {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				sum = sum.Add(e.Amount)
				break
			}
		}
	}
	return sum, nil
}

func (f *fakeEscrowEventRepo) byType(eventType entity.EscrowEventType) []*entity.EscrowEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.EscrowEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*entity.Wallet
	txs     []*entity.WalletTransaction
	refs    map[string]bool
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets: make(map[string]*entity.Wallet),
		refs:    make(map[string]bool),
	}
}

func walletKey(ownerID uuid.UUID, ownerType entity.WalletOwnerType) string {
	return ownerID.String() + "/" + string(ownerType)
}

func (f *fakeWalletRepo) FindByOwner(_ context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (*entity.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[walletKey(ownerID, ownerType)], nil
}

func (f *fakeWalletRepo) Credit(_ context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error {
	return f.post(ownerID, ownerType, currency, amount, entity.WalletTxCredit, reference, description, bookingID)
}

func (f *fakeWalletRepo) Debit(_ context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error {
	return f.post(ownerID, ownerType, currency, amount, entity.WalletTxDebit, reference, description, bookingID)
}

func (f *fakeWalletRepo) post(ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, txType entity.WalletTxType, reference, description string, bookingID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Replay: an already-posted reference is a no-op.
	if f.refs[reference] {
		return nil
	}
	f.refs[reference] = true

	key := walletKey(ownerID, ownerType)
	wallet, ok := f.wallets[key]
	if !ok {
		wallet = &entity.Wallet{
			Base:      entity.Base{ID: uuid.New()},
			OwnerID:   ownerID,
			OwnerType: ownerType,
			Currency:  currency,
		}
		f.wallets[key] = wallet
	}

	signed := amount
	if txType == entity.WalletTxDebit {
		signed = amount.Neg()
	}
	wallet.BalanceAvailable = wallet.BalanceAvailable.Add(signed)

	f.txs = append(f.txs, &entity.WalletTransaction{
		BaseSimple:  entity.BaseSimple{ID: uuid.New()},
		WalletID:    wallet.ID,
		Type:        txType,
		Status:      entity.WalletTxCompleted,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Reference:   reference,
		BookingID:   bookingID,
	})
	return nil
}

func (f *fakeWalletRepo) ListTransactions(_ context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*entity.WalletTransaction
	for _, tx := range f.txs {
		if tx.WalletID == walletID {
			all = append(all, tx)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeWalletRepo) CountTransactions(_ context.Context, walletID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, tx := range f.txs {
		if tx.WalletID == walletID {
			n++
		}
	}
	return n, nil
}

func (f *fakeWalletRepo) RecomputeAvailable(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range f.txs {
		if tx.WalletID != walletID || tx.Status != entity.WalletTxCompleted {
			continue
		}
		if tx.Type == entity.WalletTxDebit {
			sum = sum.Sub(tx.Amount)
		} else {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

type fakeJobLockRepo struct {
	mu    sync.Mutex
	locks map[string]*entity.JobLock
}

func newFakeJobLockRepo() *fakeJobLockRepo {
	return &fakeJobLockRepo{locks: make(map[string]*entity.JobLock)}
}

func (f *fakeJobLockRepo) Acquire(_ context.Context, jobName, holder string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if existing, ok := f.locks[jobName]; ok && existing.ExpiresAt.After(now) {
		return false, nil
	}
	f.locks[jobName] = &entity.JobLock{
		JobName:    jobName,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	return true, nil
}

func (f *fakeJobLockRepo) Release(_ context.Context, jobName, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.locks[jobName]; ok && existing.Holder == holder {
		delete(f.locks, jobName)
	}
	return nil
}

func (f *fakeJobLockRepo) UpdateProcessing(_ context.Context, jobName, holder string, processingIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.locks[jobName]; ok && existing.Holder == holder {
		existing.ProcessingIDs = processingIDs
	}
	return nil
}

func (f *fakeJobLockRepo) Find(_ context.Context, jobName string) (*entity.JobLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[jobName], nil
}

type fakeFeeConfigRepo struct {
	configs    map[int]*entity.FeeConfig
	active     map[string]int
	categories map[string]*entity.DisputeCategory
}

func newFakeFeeConfigRepo() *fakeFeeConfigRepo {
	return &fakeFeeConfigRepo{
		configs:    make(map[int]*entity.FeeConfig),
		active:     make(map[string]int),
		categories: make(map[string]*entity.DisputeCategory),
	}
}

func (f *fakeFeeConfigRepo) GetActive(_ context.Context, currency string) (*entity.FeeConfig, error) {
	version, ok := f.active[currency]
	if !ok {
		return nil, nil
	}
	return f.configs[version], nil
}

func (f *fakeFeeConfigRepo) GetByVersion(_ context.Context, version int) (*entity.FeeConfig, error) {
	return f.configs[version], nil
}

func (f *fakeFeeConfigRepo) FindDisputeCategory(_ context.Context, name string, subject entity.DisputeSubject) (*entity.DisputeCategory, error) {
	return f.categories[name+"/"+string(subject)], nil
}

func (f *fakeFeeConfigRepo) add(cfg *entity.FeeConfig) {
	f.configs[cfg.Version] = cfg
	if cfg.Active {
		f.active[cfg.Currency] = cfg.Version
	}
}

func (f *fakeFeeConfigRepo) addCategory(c *entity.DisputeCategory) {
	f.categories[c.Name+"/"+string(c.Subject)] = c
}

// fakeGateway records transfers and returns canned verification results.
type fakeGateway struct {
	mu          sync.Mutex
	verify      *gateway.VerifyResult
	verifyErr   error
	transferErr error
	transfers   []recordedTransfer
}

type recordedTransfer struct {
	Dest      gateway.Destination
	Amount    decimal.Decimal
	Currency  string
	Reference string
}

func (g *fakeGateway) Name() string { return "paystack" }

func (g *fakeGateway) Verify(_ context.Context, _ string) (*gateway.VerifyResult, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verify, nil
}

func (g *fakeGateway) Transfer(_ context.Context, dest gateway.Destination, amount decimal.Decimal, currency, reference string) (*gateway.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	g.transfers = append(g.transfers, recordedTransfer{
		Dest:      dest,
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
	})
	return &gateway.TransferResult{Reference: reference, Status: "success"}, nil
}

func (g *fakeGateway) transfersTo(kind string) []recordedTransfer {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedTransfer
	for _, t := range g.transfers {
		if t.Dest.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// testEnv wires the services over the fakes with a frozen clock.
type testEnv struct {
	bookings *fakeBookingRepo
	payments *fakePaymentRepo
	disputes *fakeDisputeRepo
	events   *fakeEscrowEventRepo
	wallets  *fakeWalletRepo
	fees     *fakeFeeConfigRepo
	gateway  *fakeGateway
	svc      *Service
	cfg      utils.Config
}

var testBaseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		bookings: newFakeBookingRepo(),
		payments: newFakePaymentRepo(),
		disputes: newFakeDisputeRepo(),
		events:   &fakeEscrowEventRepo{},
		wallets:  newFakeWalletRepo(),
		fees:     newFakeFeeConfigRepo(),
		gateway:  &fakeGateway{},
	}

	env.cfg = utils.Config{
		Escrow: utils.EscrowConfig{
			RoomFeeReleaseOffset:    24 * time.Hour,
			DepositReleaseOffset:    48 * time.Hour,
			CheckInGracePeriod:      6 * time.Hour,
			DisputeResponseWindow:   72 * time.Hour,
			DisputeEscalationWindow: 168 * time.Hour,
			MaxReleaseAttempts:      3,
		},
		Scheduler: utils.SchedulerConfig{BatchSize: 100},
		Gateway:   utils.GatewayConfig{DefaultProvider: "paystack"},
	}

	repo := &repository.Repository{
		Booking:     env.bookings,
		Payment:     env.payments,
		Dispute:     env.disputes,
		EscrowEvent: env.events,
		Wallet:      env.wallets,
		JobLock:     newFakeJobLockRepo(),
		FeeConfig:   env.fees,
	}

	env.svc = NewService(repo, gateway.NewRegistry(env.gateway), notify.NopNotifier{}, env.cfg, zap.NewNop())
	env.freeze(testBaseTime)
	env.seedFeeConfig()
	return env
}

func (e *testEnv) freeze(at time.Time) {
	clock := func() time.Time { return at }
	e.svc.Escrow.(*escrowService).now = clock
	e.svc.Booking.(*bookingService).now = clock
	e.svc.Dispute.(*disputeService).now = clock
}

func (e *testEnv) seedFeeConfig() {
	e.fees.add(&entity.FeeConfig{
		Version:  1,
		Currency: "NGN",
		Active:   true,
		Tiers: []entity.CommissionTier{
			{MinMonthlyVolume: dec("0"), Rate: dec("0.10")},
			{MinMonthlyVolume: dec("500000"), Rate: dec("0.12")},
			{MinMonthlyVolume: dec("2000000"), Rate: dec("0.15")},
		},
		VolumeDiscountUnit:        dec("1000000"),
		VolumeDiscountStep:        dec("0.005"),
		MaxVolumeDiscount:         dec("0.02"),
		ServiceFeePercent:         dec("0.02"),
		ServiceFeeCap:             dec("25000"),
		ServiceFeeCapThreshold:    dec("1000000"),
		ProcessingFeePercentLocal: dec("0.015"),
		ProcessingFeePercentIntl:  dec("0.039"),
		ProcessingFeeFixed:        dec("100"),
		ProcessingFeeCapLocal:     dec("2000"),
	})
	e.fees.addCategory(&entity.DisputeCategory{
		Name: "major_issue", Subject: entity.DisputeSubjectRoomFee, MaxRefundPercent: dec("0.50"),
	})
	e.fees.addCategory(&entity.DisputeCategory{
		Name: "uninhabitable", Subject: entity.DisputeSubjectRoomFee, MaxRefundPercent: dec("1.00"),
	})
	e.fees.addCategory(&entity.DisputeCategory{
		Name: "minor_damage", Subject: entity.DisputeSubjectDeposit, MaxRefundPercent: dec("0.50"),
	})
	e.fees.addCategory(&entity.DisputeCategory{
		Name: "major_damage", Subject: entity.DisputeSubjectDeposit, MaxRefundPercent: dec("1.00"),
	})
}

// seedBooking stores a priced pending booking: 50,000 room, 5,000
// cleaning, 1,100 service, 10,000 deposit, total 66,100.
func (e *testEnv) seedBooking(t *testing.T) *entity.Booking {
	t.Helper()
	booking := &entity.Booking{
		Base:             entity.Base{ID: uuid.New(), CreatedAt: testBaseTime, UpdatedAt: testBaseTime},
		Reference:        "STAY-TEST-" + uuid.NewString()[:8],
		GuestID:          uuid.New(),
		PropertyID:       uuid.New(),
		OperatorID:       uuid.New(),
		Provider:         "paystack",
		PaymentMode:      entity.PaymentModeLocal,
		Currency:         "NGN",
		CheckInDate:      testBaseTime.AddDate(0, 0, 7),
		CheckOutDate:     testBaseTime.AddDate(0, 0, 10),
		RoomFee:          dec("50000"),
		CleaningFee:      dec("5000"),
		ServiceFee:       dec("1100"),
		PlatformFee:      decimal.Zero,
		SecurityDeposit:  dec("10000"),
		Status:           entity.BookingStatusPending,
		FeeConfigVersion: 1,
	}
	if err := e.bookings.Create(context.Background(), booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return booking
}

func (e *testEnv) holdFunds(t *testing.T, booking *entity.Booking) *entity.Payment {
	t.Helper()
	payment, err := e.svc.Escrow.HoldFunds(context.Background(), booking.ID, booking.TotalAmount(), "PSK-TXN-1")
	if err != nil {
		t.Fatalf("hold funds: %v", err)
	}
	return payment
}

func (e *testEnv) operatorBalance(booking *entity.Booking) decimal.Decimal {
	w, _ := e.wallets.FindByOwner(context.Background(), booking.OperatorID, entity.WalletOwnerOperator)
	if w == nil {
		return decimal.Zero
	}
	return w.BalanceAvailable
}

func (e *testEnv) platformBalance() decimal.Decimal {
	w, _ := e.wallets.FindByOwner(context.Background(), platformWalletOwner, entity.WalletOwnerPlatform)
	if w == nil {
		return decimal.Zero
	}
	return w.BalanceAvailable
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
