package speechmine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultOptionsFile = "search.json"

// Options configures a single search.
type Options struct {
	SimilarityMin   float64    `json:"similarity_min" yaml:"similarity_min" validate:"gte=0,lte=1"`
	SimilarityMax   float64    `json:"similarity_max" yaml:"similarity_max" validate:"gte=0,lte=1,gtefield=SimilarityMin"`
	TopK            int        `json:"top_k" yaml:"top_k" validate:"gte=1"`
	OutputType      OutputType `json:"output_type" yaml:"output_type" validate:"oneof=utterance timestamp"`
	WindowTolerance int        `json:"window_tolerance" yaml:"window_tolerance" validate:"gte=0"`
}

// DefaultOptions returns the range [0,1], ten results, utterance output and a
// window tolerance of one token.
func DefaultOptions() Options {
	return Options{
		SimilarityMin:   0,
		SimilarityMax:   1,
		TopK:            10,
		OutputType:      OutputUtterance,
		WindowTolerance: 1,
	}
}

var optionsValidator = newOptionsValidator()

func newOptionsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns a *ConfigError describing the first invalid field.
func (o Options) Validate() error {
	err := optionsValidator.Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fe := fieldErrs[0]
	return &ConfigError{
		Field:  fe.Field(),
		Value:  fe.Value(),
		Reason: describeRule(fe),
	}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gtefield":
		return "must be >= similarity_min"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag()
	}
}

// LoadOptions reads search options from a JSON or YAML file (by extension),
// falling back to ./search.json. Fields missing from the file keep their
// DefaultOptions values, and a missing file yields the defaults.
func LoadOptions(path string) (Options, error) {
	if path == "" {
		path = defaultOptionsFile
	}
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return opts, fmt.Errorf("read options: %w", err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &opts)
	} else {
		err = json.Unmarshal(data, &opts)
	}
	if err != nil {
		return opts, fmt.Errorf("decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// SaveOptions persists options to disk.
func SaveOptions(path string, opts Options) error {
	if path == "" {
		path = defaultOptionsFile
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(opts)
	} else {
		data, err = json.MarshalIndent(opts, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create options dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp options: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename options: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
