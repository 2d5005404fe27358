package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes("floor: 2\n\n  priority :high \nurl: http://x.test/a")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"floor":    "2",
		"priority": "high",
		"url":      "http://x.test/a",
	}, attrs)

	_, err = ParseAttributes("floor 2")
	assert.EqualError(t, err, `line 1: expected "key: value"`)

	_, err = ParseAttributes(": orphan")
	assert.Error(t, err)
}

func TestFormatAttributesRoundTrips(t *testing.T) {
	in := map[string]interface{}{"floor": "2"}
	out, err := ParseAttributes(FormatAttributes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
