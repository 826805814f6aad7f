// Package metronome bridges wall-clock triggers onto the frame budget.
//
// Jobs are registered in code under a stable name and bound to schedule
// specs from config. When a trigger fires, the job is handed to the frame
// scheduler via ScheduleOnce rather than run directly: execution always
// happens inside a frame, and a frame loop that falls behind coalesces
// missed fires into a single pending entry with the latest arguments.
//
// Specs accept cron expressions (5-field or 6-field with seconds),
// descriptors like "@hourly" and "@every 55m", and Go durations like "30s".
// A "cron:" or "every:" prefix forces the interpretation.
package metronome
