package identifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormat(t *testing.T) {
	code := New("REQ")

	assert.True(t, strings.HasPrefix(code, "REQ"))
	assert.Len(t, code, 9)
	for _, r := range code[3:] {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "unexpected character %q", r)
	}
}

func TestNewIsUniqueEnough(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := New("AST")
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
