package bot

import (
	"testing"

	"tickdown/internal/model"
)

func TestFormatClock(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{300, "05:00"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{86400, "24:00:00"},
		{-5, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.seconds); got != tc.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(model.Timer{Duration: 300, Remaining: 300}); got != 0 {
		t.Errorf("fresh timer progress = %d, want 0", got)
	}
	if got := Progress(model.Timer{Duration: 300, Remaining: 75}); got != 75 {
		t.Errorf("progress = %d, want 75", got)
	}
	if got := Progress(model.Timer{Duration: 300, Remaining: 0}); got != 100 {
		t.Errorf("finished progress = %d, want 100", got)
	}
	if got := Progress(model.Timer{}); got != 0 {
		t.Errorf("zero-duration progress = %d, want 0", got)
	}
}

func TestParseDurationInput(t *testing.T) {
	cases := []struct {
		in      string
		h, m, s int
		wantErr bool
	}{
		{"25", 0, 25, 0, false},
		{"90", 1, 30, 0, false},
		{"05:00", 0, 5, 0, false},
		{"1:30:15", 1, 30, 15, false},
		{"90s", 0, 1, 30, false},
		{"1h30m", 1, 30, 0, false},
		{"", 0, 0, 0, true},
		{"0", 0, 0, 0, true},
		{"-5", 0, 0, 0, true},
		{"1:2:3:4", 0, 0, 0, true},
		{"abc", 0, 0, 0, true},
	}
	for _, tc := range cases {
		h, m, s, err := ParseDurationInput(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDurationInput(%q) expected error, got %d:%d:%d", tc.in, h, m, s)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDurationInput(%q): %v", tc.in, err)
			continue
		}
		if h != tc.h || m != tc.m || s != tc.s {
			t.Errorf("ParseDurationInput(%q) = %d:%d:%d, want %d:%d:%d", tc.in, h, m, s, tc.h, tc.m, tc.s)
		}
	}
}

func TestShortLabel(t *testing.T) {
	if got := shortLabel("Tea", 16); got != "Tea" {
		t.Errorf("shortLabel = %q", got)
	}
	if got := shortLabel("a very long timer label indeed", 10); got != "a very lo…" {
		t.Errorf("shortLabel = %q", got)
	}
}
