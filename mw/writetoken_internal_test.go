package mw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteTokenCheckRejectsMismatchedTitle(t *testing.T) {
	token := NewEditTokenFromPage(Page{Title: "A"}, "Bot", "")
	err := token.check("B", EditNone)
	assert.Error(t, err)
}

func TestWriteTokenCheckRequiresBypassForExclusion(t *testing.T) {
	token := NewEditTokenFromPage(Page{Title: "A", Content: "{{nobots}}"}, "Bot", "")
	assert.Error(t, token.check("A", EditNone))
	assert.NoError(t, token.check("A", EditBypassNoBots))
}

func TestWriteTokenCheckUninitialized(t *testing.T) {
	var token WriteToken
	assert.True(t, token.IsUninitialized())
	assert.Error(t, token.check("A", EditNone))
}
