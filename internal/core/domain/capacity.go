package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// WindowKey identifies the capacity pool of one package on one travel date.
// Date is always normalized to midnight UTC.
type WindowKey struct {
	PackageID int64
	Date      time.Time
}

func NewWindowKey(packageID int64, date time.Time) WindowKey {
	return WindowKey{PackageID: packageID, Date: TruncateDate(date)}
}

func (k WindowKey) String() string {
	return fmt.Sprintf("%d:%s", k.PackageID, k.Date.Format(DateLayout))
}

type CapacityWindow struct {
	Key           WindowKey
	TotalCapacity int
	ReservedCount int
}

func (w *CapacityWindow) Available() int {
	return w.TotalCapacity - w.ReservedCount
}

// ReservationToken is proof that the ledger granted Count units on Key.
type ReservationToken struct {
	Key       WindowKey
	Count     int
	Remaining int
}

func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
