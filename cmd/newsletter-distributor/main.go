// Command newsletter-distributor delivers each new newsletter issue to its
// subscribers.
package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/bots/newsletter"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultWikiURL":            botcli.DefaultWikiURL,
		"defaultSubpagesPrefix":     defaultNewsletterConfig.SubpagesPrefix,
		"defaultSubscriptionPage":   defaultNewsletterConfig.SubscriptionPage,
		"defaultEnableTwitter":      fmt.Sprintf("%t", defaultNewsletterConfig.EnableTwitter),
		"defaultTweetProposalsPage": defaultNewsletterConfig.TweetProposalsPage,
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
	reader, errE := botcli.OpenReplica(config.ReplicaPath)
	if errE != nil {
		return errE
	}
	defer reader.Close() //nolint:errcheck

	distributor := newsletter.New(config.Logger, wiki, reader, config.StateFile, config.newsletterConfig())
	return distributor.Run(ctx, config.ForcedIssue, config.FromPage, config.SinglePage, config.Force, config.Wiki.DryRun)
}
