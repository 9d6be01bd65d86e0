// Package logging provides the minimal Logger interface used throughout
// writermesh and its implementations: ZapAdapter, backed by a zap
// SugaredLogger with optional lumberjack file rotation, and NoOpLogger.
// With binds fixed key/value pairs to a Logger.
//
// Messages are dotted event keys ("stage.run.start") followed by key/value
// pairs:
//
//	logger.Info("pipeline.run.complete", "run_id", runID, "status", status)
package logging
