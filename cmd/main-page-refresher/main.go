// Command main-page-refresher keeps the front page's rotating sections
// up to date.
package main

import (
	"context"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/bots/mainpage"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultWikiURL": botcli.DefaultWikiURL,
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

	updater := mainpage.New(config.Logger, wiki, reader, config.StateFile)
	return updater.Run(ctx)
}
