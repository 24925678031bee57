package logger

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// backendLog is the single Backend every subsystem logger created through
// this package's registry writes to, so one log file carries every
// subsystem's output and one debuglevel string can retarget all of them.
var backendLog = NewBackend()

var (
	subsystemLoggers = make(map[string]*Logger)
)

// RegisterSubsystem returns the Logger for tag, creating and registering it
// on first use. Call sites assign the result to a package-level var the
// way the rest of the tree (e.g. blockvalidator, flowhandler) logs through it.
func RegisterSubsystem(tag string) *Logger {
	if l, ok := subsystemLoggers[tag]; ok {
		return l
	}
	l := backendLog.Logger(tag)
	subsystemLoggers[tag] = l
	return l
}

// SupportedSubsystems returns the sorted tags of every subsystem registered
// so far via RegisterSubsystem.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// InitLog attaches logFile (all levels) and errLogFile (warn and above) to
// the shared backend and starts it running.
func InitLog(logFile, errLogFile string) error {
	if err := backendLog.AddLogFile(logFile, LevelTrace); err != nil {
		return errors.Errorf("failed to add log file %s: %s", logFile, err)
	}
	if err := backendLog.AddLogFile(errLogFile, LevelWarn); err != nil {
		return errors.Errorf("failed to add error log file %s: %s", errLogFile, err)
	}
	return backendLog.Run()
}

// ParseAndSetDebugLevels sets the log level of every registered subsystem
// logger from debugLevel. debugLevel is either a single level name applied
// to every subsystem ("info"), or a comma-separated list of
// subsystem=level pairs ("BKVL=debug,FLOW=trace").
func ParseAndSetDebugLevels(debugLevel string) error {
	if debugLevel == "" {
		return errors.New("debuglevel can not be empty")
	}

	if !strings.Contains(debugLevel, "=") {
		level, ok := LevelFromString(debugLevel)
		if !ok {
			return errors.Errorf("invalid debug level %s", debugLevel)
		}
		for _, l := range subsystemLoggers {
			l.SetLevel(level)
		}
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return errors.Errorf("invalid subsystem=level pair %s", pair)
		}
		tag, levelStr := parts[0], parts[1]
		l, ok := subsystemLoggers[tag]
		if !ok {
			return errors.Errorf("unknown subsystem %s", tag)
		}
		level, ok := LevelFromString(levelStr)
		if !ok {
			return errors.Errorf("invalid debug level %s for subsystem %s", levelStr, tag)
		}
		l.SetLevel(level)
	}
	return nil
}
