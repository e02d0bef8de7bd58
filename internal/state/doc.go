// Package state persists pipeline progress across process restarts.
//
// Progress lives in two places. A JSON checkpoint in the working directory
// records the current stage and attempt counters and is written atomically
// after every transition. A SQLite request log records per-request outcomes
// for the status and analysis commands.
//
// Resume never trusts the checkpoint alone: DetectStage re-derives the next
// stage purely from which artifacts exist on disk, so a deleted or stale
// intermediate file causes that stage to run again.
package state
