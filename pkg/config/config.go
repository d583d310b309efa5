// Package config decodes an untyped map (as loaded by spf13/viper from env
// vars, a config file, or flags) into a typed struct, applying defaults
// before validating.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Defaulter is implemented by a config struct that wants field defaults
// applied before validation runs.
type Defaulter interface {
	ApplyDefaults()
}

var validate = validator.New()

// Decode maps in into out via mapstructure, calls out.ApplyDefaults() if
// out implements Defaulter, then validates struct tags with
// go-playground/validator.
func Decode(in map[string]any, out interface{}) error {
	if err := mapstructure.Decode(in, out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if d, ok := out.(Defaulter); ok {
		d.ApplyDefaults()
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
