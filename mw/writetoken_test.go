package mw_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/mw"
)

func TestWriteTokenStringRoundTrip(t *testing.T) {
	tokens := []mw.WriteToken{
		mw.NewCreateToken("New Page"),
		mw.NewNoConflictDetectionToken("Some Page"),
		mw.NewEditTokenFromPage(mw.Page{Title: "Existing", Content: "hi"}, "Bot", ""),
	}
	for _, tok := range tokens {
		parsed, err := mw.ParseWriteToken(tok.String())
		require.NoError(t, err)
		assert.Equal(t, tok.String(), parsed.String())
	}
}
