package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	dev := withDefaults(Config{OTLPEndpoint: "http://collector:4317", SampleRatio: 0.2})
	assert.Equal(t, "development", dev.Environment)
	assert.Equal(t, 1.0, dev.SampleRatio)
	assert.Equal(t, "collector:4317", dev.OTLPEndpoint)

	prod := withDefaults(Config{Environment: "production", OTLPEndpoint: "https://otel:4317"})
	assert.Equal(t, 0.1, prod.SampleRatio)
	assert.Equal(t, "otel:4317", prod.OTLPEndpoint)

	kept := withDefaults(Config{Environment: "staging", SampleRatio: 0.5})
	assert.Equal(t, 0.5, kept.SampleRatio)
}
