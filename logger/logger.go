package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Logger allows you to control logging with message levels and subsystem controls.
// Use the "Include" flags in the Format field to specify which fields should be included in each
//   log message.
// Subsystem log entries can be enabled per subsystem.
// For example the parent package can specify if they want to see logs from a subsystem and how
//   they want to see them.
//
// Sample Setup:
// // Create a log config and set it up.
// logConfig := logger.NewDevelopmentConfig()
// // Attach the log config to the context.
// ctx := logger.ContextWithLogConfig(context.Background(), logConfig)
// ctx = logger.ContextWithLogSubSystem(ctx, rpcnode.SubSystem)
//

type Level int

const (
	LevelDebug   Level = -2
	LevelVerbose Level = -1
	LevelInfo    Level = 0
	LevelWarn    Level = 1
	LevelError   Level = 2
	LevelFatal   Level = 3 // Calls exit
	LevelPanic   Level = 4 // Calls panic
)

// Log entry formatting (which prefix fields to include)
const (
	IncludeDate      = 0x01 // date in the local time zone: 2018/01/01
	IncludeTime      = 0x02 // time in the local time zone: 06:54:32
	IncludeMicro     = 0x04 // microseconds .123123
	IncludeFile      = 0x08 // file name and line number
	IncludeSystem    = 0x10 // system name
	IncludeLevel     = 0x20 // level of log entry
	IncludeCaller    = 0x40 // caller file:line, resolved via runtime.Caller
	IncludeTimeStamp = 0x80 // unix timestamp with microsecond fraction
)

// Returns a context with the logging config attached.
func ContextWithLogConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey, config)
}

// ContextWithLogger is a convenience that builds a Config and attaches it in one step.
func ContextWithLogger(ctx context.Context, isDevelopment, isText bool, filePath string) context.Context {
	return ContextWithLogConfig(ctx, NewConfig(isDevelopment, isText, filePath))
}

func ContextWithNoLogger(ctx context.Context) context.Context {
	return context.WithValue(ctx, configKey, &emptyConfig)
}

// Returns a context with the logging subsystem attached.
func ContextWithLogSubSystem(ctx context.Context, subsystem string) context.Context {
	return context.WithValue(ctx, subSystemKey, subsystem)
}

// Returns a context with the logging subsystem cleared. Used when a context is passed back from a
//   subsystem.
func ContextWithOutLogSubSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, subSystemKey, nil)
}

// Returns a context with a trace value attached; it is rendered as a "trace" field on every entry.
func ContextWithLogTrace(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

// ContextWithLogFields returns a context that carries additional fields attached to every entry
// logged through it, merged with (and overriding, by name) any fields already on the context.
func ContextWithLogFields(ctx context.Context, fields ...Field) context.Context {
	merged := append([]Field{}, getContextFields(ctx)...)
	for _, field := range fields {
		replaced := false
		for i := range merged {
			if merged[i].Name() == field.Name() {
				merged[i] = field
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, field)
		}
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

func getContextFields(ctx context.Context) []Field {
	value := ctx.Value(fieldsKey)
	if value == nil {
		return nil
	}

	fields, ok := value.([]Field)
	if !ok {
		return nil
	}

	return fields
}

// GetCaller returns a depth value suitable for passing directly as LogDepth's depth parameter from
// a wrapper function depth levels above the eventual log call.
func GetCaller(depth int) int {
	return depth + 1
}

// Log an entry to the main Outputs if:
//   There is no subsystem specified or if the current subsystem is included in the attached
//     Config.IncludedSubSystems.
//   And the level is equal to or above the specified minimum logging level.
// Logs to the Config.SubSystems if the level is above minimum.
func Log(ctx context.Context, level Level, format string, values ...interface{}) error {
	return LogDepth(ctx, level, 1, format, values...)
}

// Debug adds a debug level entry to the log.
func Debug(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelDebug, 1, format, values...)
}

// Verbose adds a verbose level entry to the log.
func Verbose(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelVerbose, 1, format, values...)
}

// Info adds a info level entry to the log.
func Info(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelInfo, 1, format, values...)
}

// Warn adds a warn level entry to the log.
func Warn(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelWarn, 1, format, values...)
}

// Error adds a error level entry to the log.
func Error(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelError, 1, format, values...)
}

// Fatal adds a fatal level entry to the log and then calls os.Exit(1).
func Fatal(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelFatal, 1, format, values...)
}

// Panic adds a panic level entry to the log and then calls panic().
func Panic(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelPanic, 1, format, values...)
}

// DebugWithFields adds a debug level entry carrying the given structured fields.
func DebugWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, LevelDebug, 1, fields, format, values...)
}

// VerboseWithFields adds a verbose level entry carrying the given structured fields.
func VerboseWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, LevelVerbose, 1, fields, format, values...)
}

// InfoWithFields adds an info level entry carrying the given structured fields.
func InfoWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, LevelInfo, 1, fields, format, values...)
}

// WarnWithFields adds a warn level entry carrying the given structured fields.
func WarnWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, LevelWarn, 1, fields, format, values...)
}

// ErrorWithFields adds an error level entry carrying the given structured fields.
func ErrorWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, LevelError, 1, fields, format, values...)
}

func getTrace(ctx context.Context) string {
	traceValue := ctx.Value(traceKey)
	if traceValue == nil {
		return ""
	}

	trace, ok := traceValue.(string)
	if !ok {
		return ""
	}

	return trace
}

// Same as Log, but the number of levels above the current call in the stack from which to get the
//   file name/line of code can be specified as depth.
func LogDepth(ctx context.Context, level Level, depth int, format string, values ...interface{}) error {
	return LogDepthWithFields(ctx, level, depth+1, nil, format, values...)
}

// LogDepthWithFields is the common entry point: it merges context fields, the trace value, and the
// fields passed explicitly, then writes the entry to the subsystem config (if any) and the main
// config, honoring IncludedSubSystems the same way LogDepth does.
func LogDepthWithFields(ctx context.Context, level Level, depth int, fields []Field, format string,
	values ...interface{}) error {

	switch level {
	case LevelFatal:
		defer os.Exit(1)
	case LevelPanic:
		defer panic(fmt.Sprintf(format, values...))
	}

	configValue := ctx.Value(configKey)
	var config *Config
	if configValue == nil {
		config = &DefaultConfig
	} else {
		var ok bool
		config, ok = configValue.(*Config)
		if !ok {
			return errors.New("Invalid Config Type")
		}
	}

	if config == &emptyConfig {
		return nil
	}

	allFields := getContextFields(ctx)
	if len(fields) > 0 {
		allFields = append(append([]Field{}, allFields...), fields...)
	}
	if trace := getTrace(ctx); trace != "" {
		allFields = append(allFields, String("trace", trace))
	}

	config.mutex.Lock()
	defer config.mutex.Unlock()

	subsystem := ""
	if subsystemValue := ctx.Value(subSystemKey); subsystemValue != nil {
		s, ok := subsystemValue.(string)
		if !ok {
			return errors.New("Invalid SubSystem Type")
		}
		subsystem = s
	}

	if subsystem != "" {
		if subConfig, exists := config.SubSystems[subsystem]; exists {
			if err := subConfig.writeEntry(level, depth+1, allFields, format, values...); err != nil {
				return err
			}
		}

		if !config.IncludedSubSystems[subsystem] {
			return nil // Don't log to main config
		}
	}

	return config.Main.writeEntry(level, depth+1, allFields, format, values...)
}

// Keys for context key/pairs
type loggerkey int

const (
	configKey    loggerkey = 1
	subSystemKey loggerkey = 2
	traceKey     loggerkey = 3
	fieldsKey    loggerkey = 4
)
