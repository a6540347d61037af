// Package cliconfig loads command configuration from CLI flags, their
// environment variables, and an optional config file.
//
// It is intended for internal use by kvenv only.
package cliconfig

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/kvenv/kvenv/internal/osutil"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

// Loader fills the fields of Config from the CLI context. Fields are matched
// with struct tags:
//
//	cli:"name"             the flag (and, via Key, config file key) to read
//	normalize:"list"       split comma separated values and trim whitespace
//	normalize:"filepath"   expand ~ and env vars, and make absolute
//	validate:"required"    fail if the field is empty after loading
//	validate:"file-exists" fail if the path in the field doesn't exist
//	label:"..."            the name to use in validation errors
type Loader struct {
	// The context that is passed when using a urfave/cli action
	CLI *cli.Context

	// The struct that the config values will be loaded into
	Config any

	// A slice of paths to files that should be used as config files
	DefaultConfigFilePaths []string

	// The file that was used when loading this configuration
	File *File
}

// Load reads the config file, if there is one, then sets and checks every
// tagged field. Values from flags (or their environment variables) win over
// values from the config file.
func (l *Loader) Load() (warnings []string, err error) {
	// Try and find a config file, either passed in the command line using
	// --config, or in one of the default configuration file paths.
	if path := l.CLI.String("config"); path != "" {
		file := File{Path: path}

		// Because this file was passed in manually, we should throw an error
		// if it doesn't exist.
		if !file.Exists() {
			absolutePath, _ := file.AbsolutePath()
			return warnings, fmt.Errorf("a configuration file could not be found at: %q", absolutePath)
		}
		l.File = &file
	} else {
		for _, path := range l.DefaultConfigFilePaths {
			file := File{Path: path}

			// If the config file exists, save it to the loader and
			// don't bother checking the others.
			if file.Exists() {
				l.File = &file
				break
			}
		}
	}

	if l.File != nil {
		if err := l.File.Load(); err != nil {
			return warnings, fmt.Errorf("loading config file: %w", err)
		}

		knownKeys := make(map[string]bool)
		fields, _ := reflections.FieldsDeep(l.Config)
		for _, fieldName := range fields {
			if cliName, _ := reflections.GetFieldTag(l.Config, fieldName, "cli"); cliName != "" {
				knownKeys[Key(cliName)] = true
			}
		}
		for key := range l.File.Config {
			if !knownKeys[key] {
				warnings = append(warnings, fmt.Sprintf("Unknown config file option %q in %s", key, l.File.Path))
			}
		}
	}

	fields, _ := reflections.FieldsDeep(l.Config)

	for _, fieldName := range fields {
		cliName, _ := reflections.GetFieldTag(l.Config, fieldName, "cli")
		if cliName != "" {
			if err := l.setFieldValueFromCLI(fieldName, cliName); err != nil {
				return warnings, fmt.Errorf("setting config field %s: %w", fieldName, err)
			}
		}

		normalization, _ := reflections.GetFieldTag(l.Config, fieldName, "normalize")
		if normalization != "" {
			if err := l.normalizeField(fieldName, normalization); err != nil {
				return warnings, fmt.Errorf("normalizing config field %s: %w", fieldName, err)
			}
		}

		validationRules, _ := reflections.GetFieldTag(l.Config, fieldName, "validate")
		if validationRules != "" {
			// Use the label if there is one, then the cli name, and
			// finally the struct field name.
			label, _ := reflections.GetFieldTag(l.Config, fieldName, "label")
			if label == "" {
				label = cliName
			}
			if label == "" {
				label = fieldName
			}

			if err := l.validateField(fieldName, label, validationRules); err != nil {
				return warnings, err
			}
		}
	}

	return warnings, nil
}

func (l Loader) setFieldValueFromCLI(fieldName, cliName string) error {
	fieldKind, err := reflections.GetFieldKind(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the kind of struct field %q: %w", fieldName, err)
	}

	var value any

	// We start by defaulting the value to what ever was provided by the
	// configuration file
	if l.File != nil {
		if configFileValue, ok := l.File.Config[Key(cliName)]; ok {
			switch fieldKind {
			case reflect.String:
				value = configFileValue
			case reflect.Slice:
				value = strings.Split(configFileValue, ",")
			case reflect.Bool:
				b, err := strconv.ParseBool(configFileValue)
				if err != nil {
					return fmt.Errorf("config file value for %s: %w", cliName, err)
				}
				value = b
			case reflect.Int:
				n, err := strconv.Atoi(configFileValue)
				if err != nil {
					return fmt.Errorf("config file value for %s: %w", cliName, err)
				}
				value = n
			default:
				return fmt.Errorf("unable to convert string to type %s", fieldKind)
			}
		}
	}

	// If a value hasn't been found in a config file, or one was set on the
	// command line or in the environment, then use the CLI context.
	if value == nil || l.cliValueIsSet(cliName) {
		switch fieldKind {
		case reflect.String:
			value = l.CLI.String(cliName)
		case reflect.Slice:
			value = l.CLI.StringSlice(cliName)
		case reflect.Bool:
			value = l.CLI.Bool(cliName)
		case reflect.Int:
			value = l.CLI.Int(cliName)
		default:
			return fmt.Errorf("unable to handle type: %s", fieldKind)
		}
	}

	if err := reflections.SetField(l.Config, fieldName, value); err != nil {
		return fmt.Errorf("setting value field %q to %q: %w", fieldName, value, err)
	}

	return nil
}

func (l Loader) Errorf(format string, v ...any) error {
	command := l.CLI.App.Name
	if l.CLI.Command.Name != "" {
		command += " " + l.CLI.Command.Name
	}
	suffix := fmt.Sprintf(" See: `%s --help`", command)

	return fmt.Errorf(format+suffix, v...)
}

func (l Loader) cliValueIsSet(cliName string) bool {
	if l.CLI.IsSet(cliName) {
		return true
	}

	// cli.Context#IsSet only checks to see if the flag was set on the
	// command line, not via the environment. So here we find the flag's
	// EnvVar, and return true if any of its variables are set. Flags of the
	// root action live on the App rather than a Command.
	flags := l.CLI.Command.Flags
	if l.CLI.Command.Name == "" && l.CLI.App != nil {
		flags = l.CLI.App.Flags
	}

	for _, flag := range flags {
		name, _ := reflections.GetField(flag, "Name")
		if name != cliName {
			continue
		}

		envVar, _ := reflections.GetField(flag, "EnvVar")
		envVarStr, ok := envVar.(string)
		if !ok {
			return false
		}
		for v := range strings.SplitSeq(envVarStr, ",") {
			if v = strings.TrimSpace(v); v != "" && os.Getenv(v) != "" {
				return true
			}
		}
		return false
	}

	return false
}

func (l Loader) fieldValueIsEmpty(fieldName string) bool {
	// We need to use the field kind to determine the type of empty test.
	value, _ := reflections.GetField(l.Config, fieldName)
	fieldKind, _ := reflections.GetFieldKind(l.Config, fieldName)

	switch fieldKind {
	case reflect.String:
		return value == ""
	case reflect.Slice:
		return reflect.ValueOf(value).Len() == 0
	case reflect.Bool:
		return value == false
	case reflect.Int:
		return value == 0
	default:
		panic(fmt.Sprintf("Can't determine empty-ness for field type %s", fieldKind))
	}
}

func (l Loader) validateField(fieldName, label, validationRules string) error {
	for rule := range strings.SplitSeq(validationRules, ",") {
		switch rule {
		case "required":
			if l.fieldValueIsEmpty(fieldName) {
				return l.Errorf("Missing %s.", label)
			}

		case "file-exists":
			value, _ := reflections.GetField(l.Config, fieldName)
			if path, ok := value.(string); ok {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("couldn't find %s located at %s: %w", label, path, err)
				}
			}

		default:
			return fmt.Errorf("unknown config validation rule %q", rule)
		}
	}

	return nil
}

func (l Loader) normalizeField(fieldName, normalization string) error {
	value, _ := reflections.GetField(l.Config, fieldName)
	fieldKind, _ := reflections.GetFieldKind(l.Config, fieldName)

	switch normalization {
	case "filepath":
		if fieldKind != reflect.String {
			return fmt.Errorf("filepath normalization only works on string fields")
		}

		normalizedPath, err := osutil.NormalizeFilePath(value.(string))
		if err != nil {
			return err
		}
		return reflections.SetField(l.Config, fieldName, normalizedPath)

	case "list":
		valueAsSlice, ok := value.([]string)
		if fieldKind != reflect.Slice || !ok {
			return fmt.Errorf("list normalization only works on string slice fields")
		}

		normalizedSlice := []string{}
		for _, value := range valueAsSlice {
			// Split values with commas into fields
			for normalized := range strings.SplitSeq(value, ",") {
				normalized = strings.TrimSpace(normalized)
				if normalized == "" {
					continue
				}
				normalizedSlice = append(normalizedSlice, normalized)
			}
		}
		return reflections.SetField(l.Config, fieldName, normalizedSlice)

	default:
		return fmt.Errorf("unknown normalization %q", normalization)
	}
}
