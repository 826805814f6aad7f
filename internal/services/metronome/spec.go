package metronome

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a normalized schedule. Cron always holds a robfig/cron-parseable
// expression; Every is non-zero when the spec came from an interval form.
type Spec struct {
	Cron  string
	Every time.Duration
}

// specParser allows both 5-field and 6-field (with seconds) cron specs.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec normalizes a schedule string.
//
// Interpretation, in order: an explicit "cron:" or "every:" prefix wins;
// anything with whitespace or a leading '@' is cron; anything that parses as
// a positive Go duration is an interval; everything else is rejected.
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSpec(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return intervalSpec(strings.TrimSpace(s[len("every:"):]))
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return cronSpec(s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return durationSpec(d)
	}
	return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', '@every 55m', or a duration like '30s')", raw)
}

func cronSpec(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := specParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Cron: expr}, nil
}

func intervalSpec(v string) (Spec, error) {
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	return durationSpec(d)
}

func durationSpec(d time.Duration) (Spec, error) {
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Cron: "@every " + d.String(), Every: d}, nil
}
