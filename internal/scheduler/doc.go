// Package scheduler fires named jobs on cron schedules in a fixed time zone.
//
// Schedules accept cron expressions (5 or 6 fields, descriptors such as
// "@daily" and "@every 1h"), Go durations ("55m") and HH:MM intervals ("02:30").
// A job that is still running when its next tick arrives is skipped for that tick.
package scheduler
