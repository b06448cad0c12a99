package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringIsStable(t *testing.T) {
	assert.Equal(t, HashString("hello"), HashString("hello"))
	assert.NotEqual(t, HashString("hello"), HashString("world"))
	assert.Len(t, HashString("hello"), 32)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "telecommunications", Slug("Telecommunications", 0))
	assert.Equal(t, "network_operations", Slug("  Network Operations! ", 0))
	assert.Equal(t, "real_estate", Slug("Real Estate", 20))
	assert.Equal(t, "telecommunication", Slug("Telecommunications & Media", 17))
	assert.Equal(t, "", Slug("---", 10))
}
