package tracer

import (
	"context"
	"testing"

	"casebook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	shutdown := InitTracer(config.OtelConfig{Enabled: false})
	assert.NoError(t, shutdown(context.Background()))
}
