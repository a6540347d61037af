// Package actions writes GitHub Actions workflow commands, the
// "::name::data" lines the runner interprets on a step's standard output.
package actions

import (
	"io"
	"strings"
	"sync"

	"github.com/sethvargo/go-githubactions"
)

// Commands writes workflow commands to an underlying writer, usually
// os.Stdout. It is safe for concurrent use.
type Commands struct {
	mu     sync.Mutex
	action *githubactions.Action
}

// New returns Commands that write to w.
func New(w io.Writer) *Commands {
	return &Commands{action: githubactions.New(githubactions.WithWriter(w))}
}

// Mask registers value with the runner's log redactor. Multi-line values
// are registered one line at a time, because the runner matches masks
// against individual log lines. Blank lines are never masked.
func (c *Commands) Mask(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for line := range strings.SplitSeq(value, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.action.AddMask(line)
	}
}

func (c *Commands) Warning(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.action.Warningf(format, v...)
}

func (c *Commands) Error(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.action.Errorf(format, v...)
}
