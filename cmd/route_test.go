package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrefs(t *testing.T) {
	assert.Nil(t, parsePrefs(nil))

	prefs := parsePrefs([]string{"team=sales", "tier=gold", "malformed"})
	assert.Equal(t, map[string]string{"team": "sales", "tier": "gold"}, prefs)
}
