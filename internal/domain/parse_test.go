package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := map[string]int{"00:00": 0, "09:00": 540, "21:30": 1290, " 23:59 ": 1439}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: want %d, got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "1:2:3"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestParseWindow_Inverted(t *testing.T) {
	_, _, err := ParseWindow("21:00", "09:00")
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
}

func TestParseWindow_BadBound(t *testing.T) {
	_, _, err := ParseWindow("9am", "21:00")
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
	if !IsConfigError(err) {
		t.Fatal("window errors are configuration errors")
	}
}

func TestUserLocation_Invalid(t *testing.T) {
	u := User{Timezone: "Mars/Olympus"}
	if _, err := u.Location(); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("want ErrInvalidTimezone, got %v", err)
	}
}

func TestUserWithDefaults(t *testing.T) {
	u := User{ID: "u1", TimeUpper: "18:00"}.WithDefaults("UTC", "09:00", "21:00")
	if u.Timezone != "UTC" || u.TimeLower != "09:00" || u.TimeUpper != "18:00" {
		t.Fatalf("unexpected defaults: %+v", u)
	}
}

func TestLocalizeTime(t *testing.T) {
	at := time.Date(2025, time.May, 5, 0, 30, 0, 0, time.UTC)
	got, err := LocalizeTime(at, "Asia/Tokyo")
	if err != nil {
		t.Fatalf("localize: %v", err)
	}
	if got != "09:30" {
		t.Fatalf("want 09:30, got %s", got)
	}
	if FormatMinutes(545) != "09:05" {
		t.Fatalf("unexpected format %s", FormatMinutes(545))
	}
}

func TestParseWindow_InvertedMessageNormalizesClocks(t *testing.T) {
	_, _, err := ParseWindow(" 21:00", "9:05")
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
	if want := "invalid reminder window: 09:05 is before 21:00"; err.Error() != want {
		t.Fatalf("want %q, got %q", want, err.Error())
	}
}
