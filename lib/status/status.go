// Package status computes expiry state and disposition windows from raw asset timestamps. The functions are pure so
// they can be unit-tested without any chain or network dependency. The disposition policy is a business heuristic, not
// derived from the ledger.
package status

import (
	"time"
)

const day = 24 * time.Hour

// IsExpired returns true when now is strictly past the expiry time. Equality at the expiry instant is not expired.
func IsExpired(expiry, now time.Time) bool {
	return now.After(expiry)
}

// DaysUntilExpiry returns the number of days left until expiry, rounding partial days up. The result is negative for
// assets already expired.
func DaysUntilExpiry(expiry, now time.Time) int {
	d := expiry.Sub(now)

	days := int(d / day)
	if d%day > 0 {
		days++
	}

	return days
}

// OptimalDispositionDate returns the recommended date by which an asset should be dispatched: one year after
// manufacture or six months before expiry, whichever comes first.
func OptimalDispositionDate(manufacture, expiry time.Time) time.Time {
	yearAfter := manufacture.AddDate(1, 0, 0)

	sixBefore := expiry.AddDate(0, -6, 0)
	if sixBefore.Before(yearAfter) {
		return sixBefore
	}

	return yearAfter
}

// Derived holds the computed status of an asset. Derived data is recomputed on demand and never stored
// authoritatively.
type Derived struct {
	Expired   bool  `json:"expired"`
	DaysLeft  int   `json:"daysLeft"`
	DisposeBy int64 `json:"disposeBy,omitempty"` // unix seconds, zero when manufacture or expiry is unknown
}

// Compute annotates raw manufacture and expiry timestamps (unix seconds) with the derived status at time now.
func Compute(mfg, exp int64, now time.Time) Derived {
	d := Derived{}
	if exp == 0 {
		return d
	}

	expiry := time.Unix(exp, 0).UTC()
	d.Expired = IsExpired(expiry, now)
	d.DaysLeft = DaysUntilExpiry(expiry, now)

	if mfg != 0 {
		d.DisposeBy = OptimalDispositionDate(time.Unix(mfg, 0).UTC(), expiry).Unix()
	}

	return d
}
