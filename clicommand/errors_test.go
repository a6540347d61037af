package clicommand

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintMessageAndReturnExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStderr string
		wantStdout string
	}{
		{
			name:     "nil",
			err:      nil,
			wantCode: 0,
		},
		{
			name:       "plain error",
			err:        errors.New("something broke"),
			wantCode:   1,
			wantStderr: "kvenv: fatal: something broke\n",
			wantStdout: "::error::something broke\n",
		},
		{
			name:       "wrapped exit error",
			err:        fmt.Errorf("loading: %w", NewExitError(ExitCodeConfig, errors.New("Missing keyvault.\nSee --help"))),
			wantCode:   ExitCodeConfig,
			wantStderr: "kvenv: fatal: loading: Missing keyvault.\nSee --help\n",
			wantStdout: "::error::loading: Missing keyvault.%0ASee --help\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var stderr, stdout bytes.Buffer
			code := printMessageAndReturnExitCode(&stderr, &stdout, test.err)

			assert.Equal(t, test.wantCode, code)
			assert.Equal(t, test.wantStderr, stderr.String())
			assert.Equal(t, test.wantStdout, stdout.String())
		})
	}
}

func TestExitErrorIs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", NewExitError(2, errors.New("inner")))

	assert.ErrorIs(t, err, NewExitError(2, nil))
	assert.NotErrorIs(t, err, NewExitError(1, nil))
}
