package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseLine snapshots one finalized basket reservation: the quantity and
// the unit price at checkout time.
type PurchaseLine struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// GiftLine snapshots one bundle gift. Gifts are always a single unit drawn
// from the gift product's available stock.
type GiftLine struct {
	ProductID int64
	Name      string
	Quantity  int
}

// Receipt is the output of a successful checkout. Total is the quoted price
// of the purchases after discount adjustments; gifts are free.
type Receipt struct {
	ID        string
	UserID    int64
	Purchases []PurchaseLine
	Gifts     []GiftLine
	Total     decimal.Decimal
	CreatedAt time.Time
}
