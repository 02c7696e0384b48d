package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a…@e….com", MaskEmail("Ada@Example.com"))
	assert.Equal(t, "a@e….org", MaskEmail("a@example.org"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "***", MaskEmail("abc"))
	assert.Equal(t, "n…n", MaskEmail("no-at-sign"))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "abcd…", MaskToken("abcdefghijklmnop"))
}
