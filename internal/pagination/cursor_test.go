package pagination

import (
	"testing"
	"time"
)

func TestTimeSentinel(t *testing.T) {
	if _, ok := Time(NoCursor); ok {
		t.Fatal("zero cursor must mean no upper bound")
	}
	if _, ok := Time(-5); ok {
		t.Fatal("negative cursor must mean no upper bound")
	}

	upper, ok := Time(1700000000)
	if !ok {
		t.Fatal("positive cursor must produce an upper bound")
	}
	if got := upper.Unix(); got != 1700000000 {
		t.Fatalf("expected epoch 1700000000, got %d", got)
	}
}

func TestFromTimeFloorsToWholeSeconds(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	withNanos := base.Add(750 * time.Millisecond)

	if FromTime(withNanos) != FromTime(base) {
		t.Fatal("sub-second precision must floor away")
	}

	// Round trip: a whole-second timestamp survives cursor encoding
	// exactly, so the < comparison against to_timestamp(cursor) excludes
	// precisely the items already returned.
	upper, ok := Time(FromTime(base))
	if !ok {
		t.Fatal("expected bound")
	}
	if !upper.Equal(base) {
		t.Fatalf("round trip drifted: %v != %v", upper, base)
	}
}

func TestNextCursorIsOldestItem(t *testing.T) {
	type row struct{ at time.Time }
	newest := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	oldest := newest.Add(-time.Hour)

	next := Next([]row{{newest}, {oldest}}, func(r row) time.Time { return r.at })
	if next == nil {
		t.Fatal("non-empty page must yield a cursor")
	}
	if *next != oldest.Unix() {
		t.Fatalf("cursor must be the oldest item's key, got %d want %d", *next, oldest.Unix())
	}
}

func TestNextNilOnEmptyPage(t *testing.T) {
	if next := Next(nil, func(t time.Time) time.Time { return t }); next != nil {
		t.Fatalf("empty page must signal end of data, got %d", *next)
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{1, 1},
		{20, 20},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
