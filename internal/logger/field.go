package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindInt64
	kindFloat
	kindBool
	kindDuration
	kindError
	kindAny
)

// Field is a typed key/value pair attached to a log entry.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	i64  int64
	f64  float64
	b    bool
	err  error
	any  interface{}
}

func String(key, value string) Field          { return Field{Key: key, kind: kindString, str: value} }
func Int(key string, value int) Field         { return Field{Key: key, kind: kindInt, i64: int64(value)} }
func Int64(key string, value int64) Field     { return Field{Key: key, kind: kindInt64, i64: value} }
func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, f64: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, kind: kindBool, b: value} }
func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, any: value} }

// Duration logs d in milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, kind: kindDuration, i64: d.Milliseconds()}
}

// Error logs err under the "error" key.
func Error(err error) Field {
	return Field{Key: zerolog.ErrorFieldName, kind: kindError, err: err}
}

// Strings logs a comma-joined list.
func Strings(key string, values []string) Field {
	return String(key, strings.Join(values, ","))
}

// Date logs a calendar date as YYYY-MM-DD.
func Date(key string, t time.Time) Field {
	return String(key, t.UTC().Format("2006-01-02"))
}

func (f Field) addToEvent(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindInt, kindInt64, kindDuration:
		e.Int64(f.Key, f.i64)
	case kindFloat:
		e.Float64(f.Key, f.f64)
	case kindBool:
		e.Bool(f.Key, f.b)
	case kindError:
		e.AnErr(f.Key, f.err)
	default:
		e.Interface(f.Key, f.any)
	}
}

func (f Field) addToContext(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.Key, f.str)
	case kindInt, kindInt64, kindDuration:
		return c.Int64(f.Key, f.i64)
	case kindFloat:
		return c.Float64(f.Key, f.f64)
	case kindBool:
		return c.Bool(f.Key, f.b)
	case kindError:
		return c.AnErr(f.Key, f.err)
	default:
		return c.Interface(f.Key, f.any)
	}
}
