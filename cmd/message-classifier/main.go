// Command message-classifier sorts the latest content of one or more talk
// pages into a fixed label set.
package main

import (
	"context"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/fun"

	"gitlab.com/orlodrimbot/mwbot/bots/llmclassifier"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
	"gitlab.com/orlodrimbot/mwbot/mw"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultWikiURL": botcli.DefaultWikiURL,
		"defaultModel":   DefaultModel,
	}, func(_ *kong.Context) errors.E {
		return run(&config)
	})
}

func run(config *Config) errors.E {
	ctx := context.Background()

	wiki, errE := config.Wiki.Open(ctx, config.Logger)
	if errE != nil {
		return errE
	}

	provider := &fun.OpenAITextProvider{
		APIKey: string(config.APIKey),
		Model:  config.Model,
	}
	classifier, errE := llmclassifier.New(ctx, provider, config.Logger)
	if errE != nil {
		return errE
	}

	for _, title := range config.Pages {
		page, errE := wiki.ReadPage(ctx, title, mw.PropContent)
		if errE != nil {
			config.Logger.Error().Err(errE).Str("title", title).Msg("failed to read page")
			continue
		}
		result, errE := classifier.Classify(ctx, page.Content)
		if errE != nil {
			config.Logger.Error().Err(errE).Str("title", title).Msg("classification failed")
			continue
		}
		config.Logger.Info().
			Str("title", title).
			Str("language", string(result.Language)).
			Str("category", string(result.Category)).
			Bool("blocked", result.Blocked).
			Msg("classified page")
	}
	return nil
}
