package logger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Field is one named value attached to a log entry. ValueJSON must return a valid JSON
// rendering of the value so the JSON formatter can splice it in without re-encoding.
type Field interface {
	Name() string
	ValueJSON() string
}

// field is the concrete type behind every constructor here: the value is rendered to JSON once,
// at construction, so entries suppressed below the minimum level only cost the rendering.
type field struct {
	name  string
	value string
}

func (f field) Name() string {
	return f.name
}

func (f field) ValueJSON() string {
	return f.value
}

func String(name string, value string) Field {
	return field{name: name, value: strconv.Quote(value)}
}

// Strings renders a list of strings as a JSON array.
func Strings(name string, values []string) Field {
	result := "["
	for i, v := range values {
		if i > 0 {
			result += ","
		}
		result += strconv.Quote(v)
	}
	return field{name: name, value: result + "]"}
}

func Stringer(name string, value fmt.Stringer) Field {
	return field{name: name, value: strconv.Quote(value.String())}
}

func Int(name string, value int) Field {
	return field{name: name, value: strconv.Itoa(value)}
}

func Int64(name string, value int64) Field {
	return field{name: name, value: strconv.FormatInt(value, 10)}
}

func Uint32(name string, value uint32) Field {
	return field{name: name, value: strconv.FormatUint(uint64(value), 10)}
}

func Uint64(name string, value uint64) Field {
	return field{name: name, value: strconv.FormatUint(value, 10)}
}

func Float64(name string, value float64) Field {
	return field{name: name, value: strconv.FormatFloat(value, 'f', -1, 64)}
}

func Bool(name string, value bool) Field {
	return field{name: name, value: strconv.FormatBool(value)}
}

// Hex renders a byte slice as a quoted hex string.
func Hex(name string, value []byte) Field {
	return field{name: name, value: `"` + hex.EncodeToString(value) + `"`}
}

// JSON marshals any value. A marshalling failure is rendered into the entry rather than
// dropping it.
func JSON(name string, value interface{}) Field {
	b, err := json.Marshal(value)
	if err != nil {
		return field{name: name, value: strconv.Quote("JSON convert failed: " + err.Error())}
	}
	return field{name: name, value: string(b)}
}

// Marshaler uses the value's own MarshalJSON.
func Marshaler(name string, value json.Marshaler) Field {
	b, err := value.MarshalJSON()
	if err != nil {
		return field{name: name, value: strconv.Quote("JSON convert failed: " + err.Error())}
	}
	return field{name: name, value: string(b)}
}

// Timestamp renders nanoseconds since the epoch as seconds with microsecond precision, the same
// shape the emitter uses for the entry timestamp.
func Timestamp(name string, nanoseconds int64) Field {
	t := time.Unix(0, nanoseconds)
	return field{name: name,
		value: fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))}
}

// Formatter builds a string field from a format and values.
func Formatter(name string, format string, values ...interface{}) Field {
	return field{name: name, value: strconv.Quote(fmt.Sprintf(format, values...))}
}
