package llmclassifier_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/bots/llmclassifier"
	"gitlab.com/tozd/go/fun"
)

func TestClassify_WikiQuestionExample(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY is not available")
	}

	provider := &fun.OpenAITextProvider{
		Client:                nil,
		APIKey:                os.Getenv("OPENAI_API_KEY"),
		Model:                 "gpt-4o-mini-2024-07-18",
		MaxContextLength:      128_000,
		MaxResponseLength:     16_384,
		ForceOutputJSONSchema: false,
		Seed:                  42,
		Temperature:           0,
	}

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	classifier, errE := llmclassifier.New(ctx, provider, zerolog.Nop(),
		llmclassifier.WithDelayBetweenQueries(0))
	require.NoError(t, errE, "% -+#.1v", errE)

	result, errE := classifier.Classify(ctx, "Bonjour, comment puis-je insérer une image ?")
	require.NoError(t, errE, "% -+#.1v", errE)
	assert.Equal(t, llmclassifier.CategoryWikiQuestion, result.Category)
	assert.Equal(t, llmclassifier.LanguageFrench, result.Language)
}

func TestClassify_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier, errE := llmclassifier.New(context.Background(), &fun.OpenAITextProvider{
		Client: nil,
		APIKey: "unused",
		Model:  "gpt-4o-mini-2024-07-18",
	}, zerolog.Nop(), llmclassifier.WithDelayBetweenQueries(time.Hour))
	if errE != nil {
		// Init may itself fail without network access; either way, Classify
		// must not be reachable past a cancelled context.
		t.Skip("provider initialization requires network access")
	}

	_, errE = classifier.Classify(ctx, "peu importe")
	assert.Error(t, errE)
}

