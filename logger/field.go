package logger

import (
	"fmt"
	"time"
)

// Field is a key=value pair attached to a log line by WithFields.
type Field interface {
	Key() string
	String() string
}

// Fields are printed after the message, in the order they were added.
type Fields []Field

func (f *Fields) Add(fields ...Field) {
	*f = append(*f, fields...)
}

type formattedField struct {
	key    string
	value  any
	format string
}

func (f formattedField) Key() string    { return f.key }
func (f formattedField) String() string { return fmt.Sprintf(f.format, f.value) }

// StringField must never carry a secret value; secret names and file paths
// are fine.
func StringField(key, value string) Field {
	return formattedField{key: key, value: value, format: "%s"}
}

func IntField(key string, value int) Field {
	return formattedField{key: key, value: value, format: "%d"}
}

// DurationField is printed rounded to the millisecond.
func DurationField(key string, value time.Duration) Field {
	return formattedField{key: key, value: value.Round(time.Millisecond), format: "%v"}
}
