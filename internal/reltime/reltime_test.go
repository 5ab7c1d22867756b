package reltime

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestFormatGraduatedPrecision(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{
			name: "zero difference",
			ts:   now,
			want: "now",
		},
		{
			name: "30 seconds ago",
			ts:   now.Add(-30 * time.Second),
			want: "30 seconds ago",
		},
		{
			name: "30 seconds ahead",
			ts:   now.Add(30 * time.Second),
			want: "in 30 seconds",
		},
		{
			name: "one second",
			ts:   now.Add(-time.Second),
			want: "1 second ago",
		},
		{
			name: "45 minutes ago",
			ts:   now.Add(-45 * time.Minute),
			want: "45 minutes ago",
		},
		{
			name: "3 hours ago includes clock time",
			ts:   now.Add(-3 * time.Hour),
			want: "3 hours ago, 09:00",
		},
		{
			name: "2 days ago includes clock time",
			ts:   now.Add(-48 * time.Hour),
			want: "2 days ago, 12:00",
		},
		{
			name: "40 days ago rounds to months with date",
			ts:   now.Add(-40 * 24 * time.Hour),
			want: "1 month ago, 06/12",
		},
		{
			name: "400 days ago rounds to years with full date",
			ts:   now.Add(-400 * 24 * time.Hour),
			want: "1 year ago, 11/12/22",
		},
		{
			name: "10 days ago rounds to weeks",
			ts:   now.Add(-10 * 24 * time.Hour),
			want: "1 week ago, 05/01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.ts, now, 0, language.English)
			if got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}

func TestFormatRespectsUTCOffset(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-3 * time.Hour)

	// +01:00 shifts the absolute rendering, not the relative part.
	got := Format(ts, now, 60, language.English)
	want := "3 hours ago, 10:00"
	if got != want {
		t.Errorf("Format with offset = %q, want %q", got, want)
	}

	got = Format(ts, now, -330, language.English)
	want = "3 hours ago, 03:30"
	if got != want {
		t.Errorf("Format with negative offset = %q, want %q", got, want)
	}
}
