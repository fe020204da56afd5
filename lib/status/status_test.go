package status

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsExpired(t *testing.T) {
	exp := date(2025, time.March, 1)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", date(2025, time.February, 28), false},
		{"equal", exp, false}, // equality at expiry is not expired
		{"after", exp.Add(time.Second), true},
	}
	for _, c := range cases {
		if got := IsExpired(exp, c.now); got != c.want {
			t.Errorf("%s: IsExpired=%v want %v", c.name, got, c.want)
		}
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	exp := date(2025, time.March, 1)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"ten days", date(2025, time.February, 19), 10},
		{"partial day rounds up", exp.Add(-25 * time.Hour), 2},
		{"same instant", exp, 0},
		{"expired", exp.Add(48 * time.Hour), -2},
	}
	for _, c := range cases {
		if got := DaysUntilExpiry(exp, c.now); got != c.want {
			t.Errorf("%s: DaysUntilExpiry=%d want %d", c.name, got, c.want)
		}
	}
}

func TestOptimalDispositionDate(t *testing.T) {
	cases := []struct {
		name     string
		mfg, exp time.Time
		want     time.Time
	}{
		// six months before expiry precedes one year after manufacture
		{"short shelf life", date(2024, time.January, 1), date(2025, time.January, 1), date(2024, time.July, 1)},
		// one year after manufacture precedes six months before expiry
		{"long shelf life", date(2024, time.January, 1), date(2027, time.January, 1), date(2025, time.January, 1)},
	}
	for _, c := range cases {
		if got := OptimalDispositionDate(c.mfg, c.exp); !got.Equal(c.want) {
			t.Errorf("%s: OptimalDispositionDate=%v want %v", c.name, got, c.want)
		}
	}
}

func TestCompute(t *testing.T) {
	now := date(2024, time.June, 1)

	mfg := date(2024, time.January, 1).Unix()
	exp := date(2025, time.January, 1).Unix()

	d := Compute(mfg, exp, now)
	if d.Expired {
		t.Error("asset should not be expired")
	}
	if d.DaysLeft != 214 { // 2024 is a leap year
		t.Errorf("DaysLeft=%d want 214", d.DaysLeft)
	}
	if d.DisposeBy != date(2024, time.July, 1).Unix() {
		t.Errorf("DisposeBy=%d want %d", d.DisposeBy, date(2024, time.July, 1).Unix())
	}

	// unknown expiry yields zero values
	if z := Compute(mfg, 0, now); z.Expired || z.DaysLeft != 0 || z.DisposeBy != 0 {
		t.Errorf("Compute with zero expiry=%+v want zero value", z)
	}
}
