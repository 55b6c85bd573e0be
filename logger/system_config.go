package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	case LevelPanic:
		return "panic"
	}
	return "unknown"
}

// systemConfig is the emitter behind the main log or one subsystem: a minimum level, a format
// flag set, fields stamped on every entry, and the destination writer. Copies share the writer
// and its lock so the main log and its subsystems never interleave entries.
type systemConfig struct {
	minLevel Level
	isText   bool
	format   int
	fields   []Field

	out  io.Writer
	lock *sync.Mutex
}

// Copy makes a separate copy so fields modified in one copy don't show up in another. The
// output writer and its lock stay shared.
func (sc systemConfig) Copy() systemConfig {
	result := sc
	result.fields = make([]Field, len(sc.fields))
	copy(result.fields, sc.fields)
	return result
}

// newSystemConfig creates an emitter. isDevelopment lowers the minimum level to verbose; isText
// switches from JSON lines to tab delimited text; an empty filePath writes to stderr.
func newSystemConfig(isDevelopment, isText bool, filePath string) (systemConfig, error) {
	result := systemConfig{
		isText:   isText,
		minLevel: LevelInfo,
		format:   IncludeCaller | IncludeLevel,
		out:      os.Stderr,
		lock:     &sync.Mutex{},
	}

	if isText {
		result.format |= IncludeDate | IncludeTime | IncludeMicro
	} else {
		result.format |= IncludeTimeStamp
	}

	if isDevelopment {
		result.minLevel = LevelVerbose
	}

	if len(filePath) > 0 {
		file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return result, errors.Wrap(err, "open file")
		}
		result.out = file
	}

	return result, nil
}

// newSystemConfigWriter creates an emitter against an arbitrary writer; tests capture entries
// this way.
func newSystemConfigWriter(isDevelopment, isText bool, w io.Writer) systemConfig {
	result, _ := newSystemConfig(isDevelopment, isText, "")
	result.out = w
	return result
}

// newEmptySystemConfig creates an emitter that discards everything.
func newEmptySystemConfig() (systemConfig, error) {
	return systemConfig{}, nil
}

// addSubSystem stamps the subsystem name on every entry this emitter writes.
func (sc *systemConfig) addSubSystem(name string) {
	for i, field := range sc.fields {
		if field.Name() == "subsystem" {
			sc.fields[i] = String("subsystem", name)
			return
		}
	}

	sc.fields = append(sc.fields, String("subsystem", name))
}

// writeEntry formats one entry and writes it in a single locked call so concurrent threads
// never interleave output.
func (sc *systemConfig) writeEntry(level Level, depth int, fields []Field, format string,
	values ...interface{}) error {

	if sc.out == nil || level < sc.minLevel {
		return nil
	}

	entry := &bytes.Buffer{}
	if sc.isText {
		sc.formatText(entry, level, depth+1, fields, format, values...)
	} else {
		sc.formatJSON(entry, level, depth+1, fields, format, values...)
	}
	entry.WriteByte('\n')

	sc.lock.Lock()
	defer sc.lock.Unlock()

	_, err := sc.out.Write(entry.Bytes())
	return err
}

func (sc *systemConfig) formatJSON(entry *bytes.Buffer, level Level, depth int, fields []Field,
	format string, values ...interface{}) {

	entry.WriteByte('{')

	if sc.format&IncludeLevel != 0 {
		fmt.Fprintf(entry, `"level":"%s",`, level)
	}

	now := time.Now()
	if sc.format&IncludeTimeStamp != 0 {
		fmt.Fprintf(entry, `"ts":%d.%06d,`, now.Unix(), now.Nanosecond()/1e3)
	}
	if datetime := sc.datetime(now); datetime != "" {
		fmt.Fprintf(entry, `"datetime":"%s",`, datetime)
	}
	if sc.format&IncludeCaller != 0 {
		fmt.Fprintf(entry, `"caller":"%s",`, caller(depth+1))
	}

	fmt.Fprintf(entry, `"msg":%s`, strconv.Quote(fmt.Sprintf(format, values...)))

	for _, field := range sc.fields {
		fmt.Fprintf(entry, `,"%s":%s`, field.Name(), field.ValueJSON())
	}
	for _, field := range fields {
		fmt.Fprintf(entry, `,"%s":%s`, field.Name(), field.ValueJSON())
	}

	entry.WriteByte('}')
}

func (sc *systemConfig) formatText(entry *bytes.Buffer, level Level, depth int, fields []Field,
	format string, values ...interface{}) {

	if sc.format&IncludeLevel != 0 {
		fmt.Fprintf(entry, "%s\t", level)
	}

	now := time.Now()
	if sc.format&IncludeTimeStamp != 0 {
		fmt.Fprintf(entry, "%d.%06d\t", now.Unix(), now.Nanosecond()/1e3)
	}
	if datetime := sc.datetime(now); datetime != "" {
		fmt.Fprintf(entry, "%s\t", datetime)
	}
	if sc.format&IncludeCaller != 0 {
		fmt.Fprintf(entry, "%s\t", caller(depth+1))
	}

	fmt.Fprintf(entry, format, values...)

	for _, field := range sc.fields {
		fmt.Fprintf(entry, ", %s: %s", field.Name(), field.ValueJSON())
	}
	for _, field := range fields {
		fmt.Fprintf(entry, ", %s: %s", field.Name(), field.ValueJSON())
	}
}

func (sc *systemConfig) datetime(now time.Time) string {
	var parts []string
	if sc.format&IncludeDate != 0 {
		parts = append(parts, now.Format("2006/01/02"))
	}
	if sc.format&IncludeTime != 0 {
		if sc.format&IncludeMicro != 0 {
			parts = append(parts, now.Format("15:04:05.000000"))
		} else {
			parts = append(parts, now.Format("15:04:05"))
		}
	}
	return strings.Join(parts, " ")
}

// caller returns the logging call site as "package/file.go:line".
func caller(depth int) string {
	_, path, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "???:0"
	}

	parts := strings.Split(path, "/")
	if len(parts) >= 2 {
		path = parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return fmt.Sprintf("%s:%d", path, line)
}
