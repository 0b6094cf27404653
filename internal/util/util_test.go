package util

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseWeekdaysRange(t *testing.T) {
	set, err := ParseWeekdays("mon-fri")
	if err != nil {
		t.Fatalf("ParseWeekdays returned unexpected error: %v", err)
	}
	want := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	if got := set.Days(); !reflect.DeepEqual(got, want) {
		t.Errorf("Days() = %v, want %v", got, want)
	}
	if got := set.CronField(); got != "1,2,3,4,5" {
		t.Errorf("CronField() = %q, want %q", got, "1,2,3,4,5")
	}
}

func TestParseWeekdaysList(t *testing.T) {
	set, err := ParseWeekdays("Mon, wednesday ,FRI")
	if err != nil {
		t.Fatalf("ParseWeekdays returned unexpected error: %v", err)
	}
	if got := set.CronField(); got != "1,3,5" {
		t.Errorf("CronField() = %q, want %q", got, "1,3,5")
	}
	if got := set.Days(); len(got) != 3 || got[2] != time.Friday {
		t.Errorf("Days() = %v, want [Monday Wednesday Friday]", got)
	}
}

func TestParseWeekdaysInvalid(t *testing.T) {
	for _, in := range []string{"", "funday", "fri-mon", "mon-xyz"} {
		if _, err := ParseWeekdays(in); err == nil {
			t.Errorf("ParseWeekdays(%q) should fail", in)
		}
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("20:00")
	if err != nil || h != 20 || m != 0 {
		t.Errorf("ParseClock(20:00) = %d, %d, %v", h, m, err)
	}
	if _, _, err := ParseClock("25:00"); err == nil {
		t.Error("ParseClock(25:00) should fail")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("stage failed", "stage", "publishing")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "stage=publishing") {
		t.Errorf("text output missing attribute: %q", out)
	}

	buf.Reset()
	newLogger(&buf, "info", "json").Info("transition", "to", "done")
	if !strings.Contains(buf.String(), `"to":"done"`) {
		t.Errorf("json output missing attribute: %q", buf.String())
	}

	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unknown level should default to info")
	}
}
