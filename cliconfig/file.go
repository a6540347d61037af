package cliconfig

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kvenv/kvenv/internal/osutil"
)

// File is a config file of key=value lines, in the same format as a .env
// file. Keys are flag names with '-' written as '_', e.g.
//
//	keyvault=my-vault
//	secrets="db-pass,tls-cert"
//	max_concurrency=4
type File struct {
	// The path to the file
	Path string

	// A map of key/values that was loaded from the file
	Config map[string]string
}

func (f *File) Load() error {
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return fmt.Errorf("getting absolute path for %s: %w", f.Path, err)
	}

	config, err := godotenv.Read(absolutePath)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", f.Path, err)
	}

	f.Config = config
	return nil
}

func (f File) AbsolutePath() (string, error) {
	return osutil.NormalizeFilePath(f.Path)
}

func (f File) Exists() bool {
	// If getting the absolute path fails, we can just assume it doesn't
	// exist...probably...
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return false
	}

	return osutil.FileExists(absolutePath)
}

// Key returns the config file key for a flag name.
func Key(cliName string) string {
	return strings.ReplaceAll(cliName, "-", "_")
}
