package core

import "github.com/hupe1980/writermesh/logging"

// runLogger prefixes every entry with the run id and, once bound, the agent
// that logs it.
type runLogger struct {
	logger logging.Logger
	runID  string
	agent  string
}

func newRunLogger(l logging.Logger, runID, agent string) *runLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}

	return &runLogger{logger: l, runID: runID, agent: agent}
}

// Logger returns the undecorated logger.
func (l *runLogger) Logger() logging.Logger { return l.logger }

func (l *runLogger) bind(agent string) *runLogger {
	return &runLogger{logger: l.logger, runID: l.runID, agent: agent}
}

func (l *runLogger) kv(args []any) []any {
	out := make([]any, 0, len(args)+4)
	out = append(out, "run_id", l.runID)

	if l.agent != "" {
		out = append(out, "agent", l.agent)
	}

	return append(out, args...)
}

func (l *runLogger) LogDebug(msg string, args ...any) { l.logger.Debug(msg, l.kv(args)...) }

func (l *runLogger) LogInfo(msg string, args ...any) { l.logger.Info(msg, l.kv(args)...) }

func (l *runLogger) LogWarn(msg string, args ...any) { l.logger.Warn(msg, l.kv(args)...) }

func (l *runLogger) LogError(msg string, args ...any) { l.logger.Error(msg, l.kv(args)...) }
