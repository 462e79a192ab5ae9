package puzzle

import (
	"testing"
	"time"
)

func TestDateKeyUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 23:30 local on Jan 2 is Jan 2 14:30 UTC.
	got := DateKey(time.Date(2024, 1, 2, 23, 30, 0, 0, loc))
	if got != "2024-01-02" {
		t.Fatalf("DateKey = %q, want 2024-01-02", got)
	}
}

func TestIndexForDateDeterministic(t *testing.T) {
	d, _ := ParseDate("2024-03-05")
	first := IndexForDate(d, 7)
	for i := 0; i < 5; i++ {
		if got := IndexForDate(d, 7); got != first {
			t.Fatalf("index changed between calls: %d vs %d", got, first)
		}
	}
	// 2024-03-05 is day 65 (leap year); 65 % 7 == 2.
	if first != 2 {
		t.Fatalf("index = %d, want 2", first)
	}
}

func TestIndexForDateUsesOwnYear(t *testing.T) {
	// Same calendar day lands on different day-of-year across leap years.
	leap, _ := ParseDate("2024-12-31")
	plain, _ := ParseDate("2023-12-31")
	if IndexForDate(leap, 400) == IndexForDate(plain, 400) {
		t.Fatal("day-of-year must be computed against the date's own year")
	}
	if got := IndexForDate(leap, 400); got != 366 {
		t.Fatalf("2024-12-31 index = %d, want 366", got)
	}
}

func TestIndexForDateEmptyCatalog(t *testing.T) {
	d, _ := ParseDate("2024-01-01")
	if got := IndexForDate(d, 0); got != 0 {
		t.Fatalf("index for empty catalog = %d, want 0", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "2024-13-01", "01/02/2024", "2024-1-2"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q) should fail", bad)
		}
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Date: "2024-01-01", Reason: "empty catalog"}
	if err.Error() != "no puzzle for 2024-01-01: empty catalog" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
