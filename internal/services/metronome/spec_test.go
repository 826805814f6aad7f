package metronome

import (
	"testing"
	"time"
)

func TestParseSpecVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		cron  string
		every time.Duration
	}{
		{name: "cron five field", raw: "*/5 * * * *", cron: "*/5 * * * *"},
		{name: "cron six field", raw: "0 */5 * * * *", cron: "0 */5 * * * *"},
		{name: "descriptor", raw: "@hourly", cron: "@hourly"},
		{name: "at-every", raw: "@every 55m", cron: "@every 55m"},
		{name: "duration", raw: "30s", cron: "@every 30s", every: 30 * time.Second},
		{name: "compound duration", raw: "2h30m", cron: "@every 2h30m0s", every: 150 * time.Minute},
		{name: "forced cron", raw: "cron:0 0 * * *", cron: "0 0 * * *"},
		{name: "forced interval", raw: "every:45s", cron: "@every 45s", every: 45 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSpec(tt.raw)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
			}
			if got.Cron != tt.cron {
				t.Fatalf("Cron = %q, want %q", got.Cron, tt.cron)
			}
			if got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseSpecInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "cron:", "every:", "every:nope", "-5s", "cron:bad expr"} {
		if _, err := ParseSpec(raw); err == nil {
			t.Errorf("ParseSpec(%q): expected error", raw)
		}
	}
}
