package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/railwatch/crtm/internal/models"
)

// DefaultPath is where the CLI looks for the configuration file
const DefaultPath = "config.yml"

//go:embed config.example.yml
var exampleConfig []byte

// ConfigError reports a configuration file that cannot be used
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads, parses and validates the configuration at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document, filling in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := newValidator().Struct(&cfg); err != nil {
		return nil, describe(err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// WriteExample writes the example configuration to path. An existing file
// is never overwritten.
func WriteExample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if _, err := f.Write(exampleConfig); err != nil {
		f.Close()
		return &ConfigError{Path: path, Err: err}
	}
	return f.Close()
}

// Example returns the example configuration document
func Example() []byte {
	return append([]byte(nil), exampleConfig...)
}

// IsNotExist reports whether err is a missing configuration file
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("seatcategory", func(fl validator.FieldLevel) bool {
		return models.SeatCategory(fl.Field().String()).IsValid()
	})
	return v
}

// describe flattens validator errors into one readable error
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s entries", field, fe.Param()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date (YYYY-MM-DD), got %q", field, fe.Value()))
		case "seatcategory":
			msgs = append(msgs, fmt.Sprintf("%s: unknown seat category %q", field, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
