// Package publish writes a key/value mapping to the files a GitHub Actions
// runner reads after a step finishes: the env file (GITHUB_ENV), whose
// entries become environment variables for later steps, and the step output
// file (GITHUB_OUTPUT).
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/kvenv/kvenv/env"
	"github.com/kvenv/kvenv/internal/redact"
	"github.com/kvenv/kvenv/logger"
)

const (
	DefaultOutputName      = "json"
	DefaultForbiddenPrefix = "GITHUB_"

	lockRetryDelay = 100 * time.Millisecond
)

// ErrDelimiterCollision is returned when a generated heredoc delimiter
// appears in the key or value it is meant to enclose.
var ErrDelimiterCollision = errors.New("delimiter collides with key or value")

// Masker receives every value before it is written anywhere, so that it can
// be hidden from job logs.
type Masker interface {
	Mask(value string)
}

// Warner surfaces a warning to the person reading the job, usually as a
// ::warning:: workflow command.
type Warner interface {
	Warning(format string, v ...any)
}

// Config is the explicit configuration of a Publisher. Nothing is read from
// the process environment.
type Config struct {
	// EnvFile is the path of the env file. Required.
	EnvFile string

	// OutputFile is the path of the step output file. Required.
	OutputFile string

	// OutputName is the step output that holds the JSON encoded mapping.
	OutputName string

	// Keys with this prefix are reserved by the runner and never written to
	// the env file.
	ForbiddenPrefix string

	Masker Masker
	Warner Warner

	// Echo receives the contents of the output file after publishing, with
	// every published value redacted. Nil disables the echo.
	Echo io.Writer

	// Delimiter returns a fresh heredoc delimiter for a multi-line value.
	Delimiter func() string
}

// Report describes what Publish did.
type Report struct {
	// Keys written to the env file, in the order they were written.
	Written []string

	// Keys skipped because of the forbidden prefix.
	Skipped []string
}

type Publisher struct {
	conf   Config
	logger logger.Logger
}

// New returns a Publisher for conf, filling unset optional fields with their
// defaults.
func New(l logger.Logger, conf Config) (*Publisher, error) {
	if conf.EnvFile == "" {
		return nil, errors.New("env file path is empty")
	}
	if conf.OutputFile == "" {
		return nil, errors.New("output file path is empty")
	}
	if conf.OutputName == "" {
		conf.OutputName = DefaultOutputName
	}
	if strings.ContainsAny(conf.OutputName, "=\r\n") {
		return nil, fmt.Errorf("invalid output name %q", conf.OutputName)
	}
	if conf.ForbiddenPrefix == "" {
		conf.ForbiddenPrefix = DefaultForbiddenPrefix
	}
	if conf.Delimiter == nil {
		conf.Delimiter = NewDelimiter
	}

	return &Publisher{conf: conf, logger: l}, nil
}

// NewDelimiter returns a random heredoc delimiter in the same shape the
// Actions toolkit uses.
func NewDelimiter() string {
	return "ghadelimiter_" + uuid.NewString()
}

// Publish masks every value in mapping, appends the allowed entries to the
// env file, and appends the whole mapping as a single JSON step output.
func (p *Publisher) Publish(ctx context.Context, mapping *env.Environment) (*Report, error) {
	keys := mapping.Keys()
	values := mapping.Dump()

	// Masking happens before anything can be printed or written.
	if p.conf.Masker != nil {
		for _, k := range keys {
			p.conf.Masker.Mask(values[k])
		}
	}

	report := &Report{}

	var envBuf bytes.Buffer
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}

		if strings.HasPrefix(k, p.conf.ForbiddenPrefix) {
			p.logger.Warn("Skipping env var %s: names with the prefix %s are reserved", k, p.conf.ForbiddenPrefix)
			if p.conf.Warner != nil {
				p.conf.Warner.Warning("env var %s has forbidden prefix %s and was not set", k, p.conf.ForbiddenPrefix)
			}
			report.Skipped = append(report.Skipped, k)
			continue
		}

		entry, err := formatEntry(k, values[k], p.conf.Delimiter)
		if err != nil {
			return nil, err
		}
		envBuf.WriteString(entry)
		report.Written = append(report.Written, k)
	}

	if err := appendToFile(ctx, p.conf.EnvFile, envBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing env file: %w", err)
	}
	p.logger.WithFields(
		logger.StringField("path", p.conf.EnvFile),
		logger.StringField("size", humanize.Bytes(uint64(envBuf.Len()))),
		logger.IntField("count", len(report.Written)),
	).Debug("Appended env file")

	for _, k := range report.Written {
		p.logger.Notice("Created new env var: %s", k)
	}

	output, err := encodeOutput(p.conf.OutputName, values)
	if err != nil {
		return nil, err
	}
	if err := appendToFile(ctx, p.conf.OutputFile, output); err != nil {
		return nil, fmt.Errorf("writing output file: %w", err)
	}
	p.logger.WithFields(
		logger.StringField("path", p.conf.OutputFile),
		logger.StringField("size", humanize.Bytes(uint64(len(output)))),
	).Debug("Appended output file")

	if p.conf.Echo != nil {
		if err := p.echo(mapping.Values()); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// echo copies the output file to the echo writer with published values
// redacted. Values too short to redact safely are reported instead.
func (p *Publisher) echo(values []string) error {
	contents, err := os.ReadFile(p.conf.OutputFile)
	if err != nil {
		return fmt.Errorf("reading output file: %w", err)
	}

	needles, short := redact.Needles(values)
	if len(short) > 0 {
		p.logger.Warn("%d published value(s) are shorter than %d characters and are not redacted locally", len(short), redact.LengthMin)
	}

	p.logger.Notice("%s (%s):", p.conf.OutputFile, humanize.Bytes(uint64(len(contents))))
	_, err = io.WriteString(p.conf.Echo, redact.String(string(contents), needles))
	return err
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("env var name is empty")
	}
	if strings.ContainsAny(key, "=\r\n") {
		return fmt.Errorf("env var name %q contains '=' or a line break", key)
	}
	return nil
}

// formatEntry renders one env file entry. Single line values are written as
// KEY=value. Multi-line values use the runner's heredoc form:
//
//	KEY<<DELIMITER
//	value
//	DELIMITER
func formatEntry(key, value string, delimiter func() string) (string, error) {
	if !strings.ContainsAny(value, "\r\n") {
		return key + "=" + value + "\n", nil
	}

	delim := delimiter()
	if strings.Contains(key, delim) || strings.Contains(value, delim) {
		return "", fmt.Errorf("env var %s: %w", key, ErrDelimiterCollision)
	}

	return key + "<<" + delim + "\n" + value + "\n" + delim + "\n", nil
}

// encodeOutput renders the mapping as a single NAME=<json> line. The encoder
// escapes line breaks inside strings, so the line is never split.
func encodeOutput(name string, values map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(name)
	buf.WriteString("=")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	// Encode terminates the value with a newline.
	return buf.Bytes(), nil
}

// LockPath returns the sibling file appendToFile locks while writing path.
// The lock file is left in place after the write: unlinking it would let a
// writer still waiting on the old file and a newcomer locking a fresh one
// hold the lock at the same time. The runner deletes its file command
// directory, lock files included, when the job finishes.
func LockPath(path string) string {
	return path + ".lock"
}

// appendToFile appends data to path while holding an advisory lock on
// LockPath(path), so other writers on the same runner cannot interleave
// their lines with ours.
func appendToFile(ctx context.Context, path string, data []byte) (err error) {
	lock := flock.New(LockPath(path))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %q: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("could not lock %q", path)
	}
	defer func() {
		err = errors.Join(err, lock.Unlock())
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
