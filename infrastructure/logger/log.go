package logger

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"
)

// logEntry is a single rendered log line queued on a Backend's writeChan,
// already formatted and already filtered to the entry's own Level so
// runBlocking only has to compare it against each writer's configured level.
type logEntry struct {
	level Level
	log   []byte
}

// Logger writes log messages tagged with a fixed subsystem name to its
// Backend, filtering out anything below its own configured Level. Multiple
// Loggers from the same Backend interleave safely: the Backend serializes
// writes on a single channel.
type Logger struct {
	level        Level
	subsystemTag string
	backend      *Backend
	writeChan    chan logEntry
}

// Level returns the current logging level of the logger.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32((*uint32)(&l.level)))
}

// SetLevel changes the logging level of the logger to the passed level.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32((*uint32)(&l.level), uint32(level))
}

func (l *Logger) write(level Level, s string) {
	if level < l.Level() {
		return
	}

	var buf bytes.Buffer
	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	buf.WriteByte(' ')
	buf.WriteString("[" + level.String() + "]")
	buf.WriteByte(' ')
	buf.WriteString(l.subsystemTag)
	buf.WriteByte(' ')
	buf.WriteString(s)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		buf.WriteByte('\n')
	}

	entry := logEntry{level: level, log: buf.Bytes()}
	select {
	case l.writeChan <- entry:
	default:
		// The backend isn't running (Run was never called, or Close
		// already happened); drop rather than block the caller.
	}
}

func (l *Logger) writef(level Level, format string, args ...interface{}) {
	l.write(level, fmt.Sprintf(format, args...))
}

// Tracef formats and logs a message at the trace level.
func (l *Logger) Tracef(format string, args ...interface{}) { l.writef(LevelTrace, format, args...) }

// Debugf formats and logs a message at the debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.writef(LevelDebug, format, args...) }

// Infof formats and logs a message at the info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.writef(LevelInfo, format, args...) }

// Warnf formats and logs a message at the warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.writef(LevelWarn, format, args...) }

// Errorf formats and logs a message at the error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.writef(LevelError, format, args...) }

// Criticalf formats and logs a message at the critical level.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.writef(LevelCritical, format, args...)
}

// Trace logs a message at the trace level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Trace(args ...interface{}) { l.write(LevelTrace, fmt.Sprint(args...)) }

// Debug logs a message at the debug level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Debug(args ...interface{}) { l.write(LevelDebug, fmt.Sprint(args...)) }

// Info logs a message at the info level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Info(args ...interface{}) { l.write(LevelInfo, fmt.Sprint(args...)) }

// Warn logs a message at the warn level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Warn(args ...interface{}) { l.write(LevelWarn, fmt.Sprint(args...)) }

// Error logs a message at the error level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Error(args ...interface{}) { l.write(LevelError, fmt.Sprint(args...)) }

// Critical logs a message at the critical level, concatenating args the same way fmt.Sprint does.
func (l *Logger) Critical(args ...interface{}) { l.write(LevelCritical, fmt.Sprint(args...)) }

// SubsystemTag returns the subsystem tag this logger was created with.
func (l *Logger) SubsystemTag() string {
	return l.subsystemTag
}
