// Package env provides utilities for dealing with environment variables.
//
// It is intended for internal use by kvenv only.
package env

import (
	"runtime"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v2"
)

// Environment is a map of environment variables, with the keys normalized
// for case-insensitive operating systems. It is safe for concurrent use.
type Environment struct {
	underlying *xsync.MapOf[string, string]
}

func New() *Environment {
	return &Environment{underlying: xsync.NewMapOf[string]()}
}

func NewWithLength(length int) *Environment {
	return &Environment{underlying: xsync.NewMapOfPresized[string](length)}
}

func FromMap(m map[string]string) *Environment {
	env := NewWithLength(len(m))

	for k, v := range m {
		env.Set(k, v)
	}

	return env
}

// Split splits an environment variable (in the form "name=value") into the name
// and value substrings. If there is no '=', or the first '=' is at the start,
// it returns `"", "", false`.
func Split(l string) (name, value string, ok bool) {
	// Variable names should not contain '=' on any platform...and yet Windows
	// creates environment variables beginning with '=' in some circumstances.
	// See https://github.com/golang/go/issues/49886.
	i := strings.IndexRune(l, '=')
	if i <= 0 {
		return "", "", false
	}
	return l[:i], l[i+1:], true
}

// FromSlice creates a new environment from a string slice of KEY=VALUE
func FromSlice(s []string) *Environment {
	env := NewWithLength(len(s))

	for _, l := range s {
		if k, v, ok := Split(l); ok {
			env.Set(k, v)
		}
	}

	return env
}

// Dump returns a copy of the environment with all keys normalized
func (e *Environment) Dump() map[string]string {
	d := make(map[string]string, e.underlying.Size())
	e.underlying.Range(func(k, v string) bool {
		d[normalizeKeyName(k)] = v
		return true
	})

	return d
}

// Get returns a key from the environment
func (e *Environment) Get(key string) (string, bool) {
	v, ok := e.underlying.Load(normalizeKeyName(key))
	return v, ok
}

// GetString returns a key from the environment, or defaultValue if the key is
// missing or empty.
func (e *Environment) GetString(key, defaultValue string) string {
	if v, _ := e.Get(key); v != "" {
		return v
	}
	return defaultValue
}

// Set sets a key in the environment. An existing value for the key is
// replaced.
func (e *Environment) Set(key string, value string) string {
	e.underlying.Store(normalizeKeyName(key), value)
	return value
}

// Length returns the length of the environment
func (e *Environment) Length() int {
	return e.underlying.Size()
}

// Keys returns the (normalized) keys of the environment in sorted order.
func (e *Environment) Keys() []string {
	keys := make([]string, 0, e.underlying.Size())
	e.underlying.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Values returns every value in the environment, ordered by key.
func (e *Environment) Values() []string {
	keys := e.Keys()
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := e.underlying.Load(k)
		values = append(values, v)
	}
	return values
}

// Environment variables on Windows are case-insensitive, so PATH is the same
// as Path. os.Environ() returns keys in their original casing, so on Windows
// we normalise every key that goes in or out of this API. Unix systems are
// case sensitive, so keys are left alone there.
func normalizeKeyName(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
