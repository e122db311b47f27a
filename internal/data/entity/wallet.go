package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletOwnerType string

const (
	WalletOwnerOperator WalletOwnerType = "operator"
	WalletOwnerPlatform WalletOwnerType = "platform"
)

// Wallet balances are a materialized cache over the wallet_transactions
// rows: balance_available must equal the signed sum of completed
// transactions at all times.
type Wallet struct {
	Base
	OwnerID          uuid.UUID       `db:"owner_id"`
	OwnerType        WalletOwnerType `db:"owner_type"`
	Currency         string          `db:"currency"`
	BalanceAvailable decimal.Decimal `db:"balance_available"`
	BalancePending   decimal.Decimal `db:"balance_pending"`
}

type WalletTxType string

const (
	WalletTxCredit WalletTxType = "credit"
	WalletTxDebit  WalletTxType = "debit"
)

type WalletTxStatus string

const (
	WalletTxPending   WalletTxStatus = "pending"
	WalletTxCompleted WalletTxStatus = "completed"
	WalletTxFailed    WalletTxStatus = "failed"
)

// WalletTransaction rows are append-only.
type WalletTransaction struct {
	BaseSimple
	WalletID    uuid.UUID       `db:"wallet_id"`
	Type        WalletTxType    `db:"type"`
	Status      WalletTxStatus  `db:"status"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Description string          `db:"description"`
	Reference   string          `db:"reference"`
	BookingID   *uuid.UUID      `db:"booking_id"`
}
