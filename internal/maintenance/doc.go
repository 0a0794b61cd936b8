// Package maintenance runs periodic upkeep against the event store while
// capture is running: WAL checkpoints and planner statistics refreshes on a
// cron schedule.
package maintenance
