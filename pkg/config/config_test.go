package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/config"
)

type noDefaults struct {
	A string `mapstructure:"a"`
	B int    `mapstructure:"b"`
	C bool   `mapstructure:"c"`
}

type withDefaults struct {
	A string `mapstructure:"a"`
	B int    `mapstructure:"b" validate:"required"`
}

func (c *withDefaults) ApplyDefaults() {
	if c.A == "" {
		c.A = "default"
	}
}

func TestDecodeWithNoDefaults(t *testing.T) {
	var out noDefaults
	require.NoError(t, config.Decode(map[string]any{"b": 10, "c": true}, &out))
	require.Equal(t, noDefaults{B: 10, C: true}, out)
}

func TestDecodeAppliesDefaultsBeforeValidating(t *testing.T) {
	var out withDefaults
	require.NoError(t, config.Decode(map[string]any{"b": 100}, &out))
	require.Equal(t, withDefaults{A: "default", B: 100}, out)
}

func TestDecodeFailsValidationWhenRequiredFieldMissing(t *testing.T) {
	var out withDefaults
	err := config.Decode(map[string]any{"a": "string"}, &out)
	require.Error(t, err)
}
