package services

import (
	"strconv"
	"testing"
	"time"

	"marketplace-scraper/models"
)

var captured = time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC)

func fixedClock() time.Time { return captured }

func TestNormalizeRelativeDates(t *testing.T) {
	n := NewDateNormalizer(French, fixedClock)

	tests := []struct {
		phrase string
		want   string
	}{
		{"il y a quelques instants", "2024-03-15 14:30:45"},
		{"Il y a Quelques Instants", "2024-03-15 14:30:45"},
		{"il y a 5 minutes", "2024-03-15 14:25:45"},
		{"il y a 1 minute", "2024-03-15 14:29:45"},
		{"il y a 3 heures", "2024-03-15 11:30:45"},
		{"il y a 2 jours", "2024-03-13"},
		{"il y a 1 mois", "2024-02-14"},
		{"il y a 2 ans", "2022-03-16"},
		{"il y a 2 jours et 3 mois", "2024-03-13"},
		// the minute keyword outranks the hour keyword and only the first number counts
		{"il y a 4 heures 30 minutes", "2024-03-15 14:26:45"},
		{"il y a 3 semaines", models.Unknown},
		{"hier", models.Unknown},
		{"", models.Unknown},
	}

	for _, tt := range tests {
		got := n.Normalize(tt.phrase).String()
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q; want %q", tt.phrase, got, tt.want)
		}
	}
}

func TestNormalizeMinutesRoundTrip(t *testing.T) {
	n := NewDateNormalizer(French, fixedClock)

	for _, minutes := range []int{0, 1, 7, 59, 61, 600, 1440} {
		phrase := "il y a " + strconv.Itoa(minutes) + " minutes"
		f := n.Normalize(phrase)
		if !f.Known {
			t.Fatalf("Normalize(%q) is unknown", phrase)
		}
		parsed, err := time.ParseInLocation(timestampLayout, f.Value, time.UTC)
		if err != nil {
			t.Fatalf("parse %q: %v", f.Value, err)
		}
		back := parsed.Add(time.Duration(minutes) * time.Minute)
		if !back.Equal(captured) {
			t.Errorf("%q: %v + %dm = %v; want %v", phrase, parsed, minutes, back, captured)
		}
	}
}
