// Package llmclassifier sorts talk-page messages into a fixed label set
// using a large language model.
package llmclassifier

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/fun"
	"golang.org/x/time/rate"
)

// Language is the message's detected natural language.
type Language string

const (
	LanguageUnknown Language = ""
	LanguageFrench  Language = "fr"
	LanguageEnglish Language = "en"
	LanguageOther   Language = "other"
)

func languageOf(s string) Language {
	switch s {
	case "fr":
		return LanguageFrench
	case "en":
		return LanguageEnglish
	case "":
		return LanguageUnknown
	default:
		return LanguageOther
	}
}

// Category is one of the fixed labels a message is sorted into.
type Category string

const (
	CategoryUnknown         Category = ""
	CategoryWikiQuestion    Category = "WikiQuestion"
	CategoryNonWikiQuestion Category = "NonWikiQuestion"
	CategoryThanks          Category = "Thanks"
	CategoryArticleDraft    Category = "ArticleDraft"
	CategoryOther           Category = "Other"
)

func categoryOf(s string) Category {
	switch Category(s) {
	case CategoryWikiQuestion, CategoryNonWikiQuestion, CategoryThanks, CategoryArticleDraft, CategoryOther:
		return Category(s)
	default:
		return CategoryUnknown
	}
}

// Classification is the model's verdict on one message.
type Classification struct {
	Language Language
	Category Category
	Blocked  bool
}

// maxMessageLength caps the amount of wikicode sent to the model.
const maxMessageLength = 10_000

// instructionPrompt is the system instructions sent with every query.
const instructionPrompt = `Ta tâche est de reconnaître la langue et la catégorie d'un message en wikicode posté sur une page de discussion de Wikipédia.
Le message est délimité par les marqueurs [début entrée] et [fin entrée].
Donne la langue comme un code ISO 639-1 (par défaut "fr" s'il n'y a aucun mot identifiable).
Classe le message dans l'une des catégories : WikiQuestion, NonWikiQuestion, Thanks, ArticleDraft, Other.
Par ailleurs, vérifie si l'utilisateur indique être bloqué en écriture.

Procède de la façon suivante :
- Analyse si l'utilisateur pose une question ou exprime implicitement une demande, fait part d'une incompréhension ou d'une frustration (sans être menaçant ni injurieux). Dans ce cas, la réponse est WikiQuestion ou NonWikiQuestion. Sinon, la réponse est Thanks, ArticleDraft ou Other. Cas particulier : si le message contient une déclaration de conflit d'intérêt, seules les questions directes et explicites doivent conduire à classer en WikiQuestion ou NonWikiQuestion.
- Pour distinguer WikiQuestion de NonWikiQuestion : WikiQuestion concerne le fonctionnement de Wikipédia, la modification de pages, l'ajout d'images, la mise en forme, les sources, la suppression de pages ou le système de discussion lui-même. NonWikiQuestion couvre les autres questions, notamment les questions de connaissance générale, la recherche d'emploi ou de stage. En l'absence de contexte, la présence du mot "monmentor" fait pencher vers WikiQuestion.
- Pour distinguer Thanks, ArticleDraft et Other : Thanks est pour les remerciements n'attendant pas de réponse. ArticleDraft est pour les brouillons d'article ; un message long et impersonnel (sans "je", "tu" ni "vous") le suggère. Other couvre le reste, notamment les simples déclarations et les messages menaçants, injurieux ou incompréhensibles.`

// classificationPayload is the JSON shape requested from the model via
// outputSchema.
type classificationPayload struct {
	Language string `json:"language"`
	Category string `json:"category"`
	Blocked  bool   `json:"blocked"`
}

var outputSchema = []byte(`
{
	"title": "message_classification",
	"type": "object",
	"properties": {
		"language": {
			"type": "string",
			"description": "ISO 639-1 code of the message's language."
		},
		"category": {
			"type": "string",
			"enum": ["WikiQuestion", "NonWikiQuestion", "Thanks", "ArticleDraft", "Other"]
		},
		"blocked": {
			"type": "boolean",
			"description": "True if the user states they are blocked from editing."
		}
	},
	"additionalProperties": false,
	"required": ["language", "category", "blocked"]
}
`)

// delayBetweenQueries is the default pacing between LLM calls, matching
// mw.Wiki's own default edit pacing.
const delayBetweenQueries = 12 * time.Second

// Classifier pairs an LLM text provider with the pacing its API quota
// requires.
type Classifier struct {
	text    fun.Text[string, classificationPayload]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDelayBetweenQueries overrides the default 12s pacing between LLM
// calls.
func WithDelayBetweenQueries(d time.Duration) Option {
	return func(c *Classifier) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// New builds a Classifier backed by provider. The message-classifier command
// passes a *fun.OpenAITextProvider whose API key is read from a file;
// GEMINI_API_KEY is not read anywhere in this module.
func New(ctx context.Context, provider fun.TextProvider, logger zerolog.Logger, opts ...Option) (*Classifier, errors.E) {
	c := &Classifier{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(delayBetweenQueries), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.text = fun.Text[string, classificationPayload]{
		Provider:         provider,
		OutputJSONSchema: outputSchema,
		Prompt:           instructionPrompt,
	}
	if err := c.text.Init(ctx); err != nil {
		return nil, errors.WithMessage(err, "initializing message classifier")
	}
	return c, nil
}

// truncateMessage caps message at maxMessageLength, backing off to the
// preceding space so a query is never cut mid-word.
func truncateMessage(message string) string {
	message = strings.TrimSpace(message)
	if len(message) < maxMessageLength {
		return message
	}
	truncated := message[:maxMessageLength]
	if i := strings.LastIndexByte(truncated, ' '); i >= 0 {
		truncated = truncated[:i]
	}
	return truncated
}

// Classify sorts message into a Category and detects its Language, pacing
// requests so as to not exceed the provider's quota.
func (c *Classifier) Classify(ctx context.Context, message string) (Classification, errors.E) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Classification{}, errors.WithStack(err)
	}
	wrapped := "[début entrée]\n" + truncateMessage(message) + "\n[fin entrée]"
	payload, err := c.text.Call(ctx, wrapped)
	if err != nil {
		c.logger.Error().Err(err).Msg("LLM classification query failed")
		return Classification{}, err
	}
	return Classification{
		Language: languageOf(payload.Language),
		Category: categoryOf(payload.Category),
		Blocked:  payload.Blocked,
	}, nil
}
