package slot

import (
	"testing"
	"time"
)

func TestParseWeek(t *testing.T) {
	w, err := ParseWeek("2026-07")
	if err != nil {
		t.Fatalf("parse 2026-07 failed: %v", err)
	}
	if w.Year != 2026 || w.Num != 7 {
		t.Fatalf("unexpected week parts: %+v", w)
	}
	if w.String() != "2026-07" {
		t.Fatalf("round trip produced %s", w.String())
	}

	for _, value := range []string{"", "2026", "2026-00", "2026-54", "26-07", "2026_07"} {
		if _, err := ParseWeek(value); err == nil {
			t.Fatalf("expected parse error for %q", value)
		}
	}
}

func TestWeekStartIsMonday(t *testing.T) {
	w := MustParseWeek("2026-07")
	start := w.Start()
	if start.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", start.Weekday())
	}
	if got := WeekOf(start); got != w {
		t.Fatalf("start of %s resolves to week %s", w, got)
	}
}

func TestWeekEndIsSundayJustBeforeMidnight(t *testing.T) {
	end := MustParseWeek("2026-07").End()
	if end.Weekday() != time.Sunday {
		t.Fatalf("expected Sunday, got %s", end.Weekday())
	}
	if end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Fatalf("unexpected end-of-week clock: %s", end)
	}
	after := WeekOf(end.Add(time.Millisecond))
	if after == MustParseWeek("2026-07") {
		t.Fatalf("instant after End() should fall in the next week, got %s", after)
	}
}

func TestWeekOfHandlesISOYearBoundary(t *testing.T) {
	// 2027-01-01 is a Friday inside ISO week 2026-W53.
	w := WeekOf(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC))
	if w.String() != "2026-53" {
		t.Fatalf("expected 2026-53, got %s", w)
	}
}

func TestAbsoluteComparesAcrossYears(t *testing.T) {
	late := MustParseWeek("2026-52")
	early := MustParseWeek("2027-01")
	if late.Absolute() >= early.Absolute() {
		t.Fatalf("expected %s < %s in absolute weeks", late, early)
	}
}

func TestDateOfResolvesSlotInstant(t *testing.T) {
	w := MustParseWeek("2026-07")
	at := w.DateOf(MustParse("thu_2000"))
	if at.Weekday() != time.Thursday || at.Hour() != 20 || at.Minute() != 0 {
		t.Fatalf("unexpected instant for thu_2000: %s", at)
	}
	if FromTime(at).String() != "thu_2000" {
		t.Fatalf("DateOf/FromTime round trip broke: %s", FromTime(at))
	}
}
