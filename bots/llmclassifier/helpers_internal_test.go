package llmclassifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, LanguageFrench, languageOf("fr"))
	assert.Equal(t, LanguageEnglish, languageOf("en"))
	assert.Equal(t, LanguageOther, languageOf("de"))
	assert.Equal(t, LanguageUnknown, languageOf(""))
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryWikiQuestion, categoryOf("WikiQuestion"))
	assert.Equal(t, CategoryThanks, categoryOf("Thanks"))
	assert.Equal(t, CategoryUnknown, categoryOf("NotACategory"))
	assert.Equal(t, CategoryUnknown, categoryOf(""))
}

func TestTruncateMessage_ShortMessagePassesThrough(t *testing.T) {
	assert.Equal(t, "Bonjour le monde", truncateMessage("  Bonjour le monde  "))
}

func TestTruncateMessage_LongMessageBacksOffToLastSpace(t *testing.T) {
	long := strings.Repeat("mot ", 3000) + "dernier"
	truncated := truncateMessage(long)

	assert.Less(t, len(truncated), maxMessageLength)
	assert.False(t, strings.HasSuffix(truncated, " "))
	assert.True(t, strings.HasPrefix(long, truncated))
}
