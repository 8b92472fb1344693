// Command archiver moves stale talk-page threads into dated archive
// subpages.
package main

import (
	"context"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/archiver"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultDataDir": DefaultDataDir,
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

	a, errE := archiver.NewArchiver(config.Logger, wiki, config.DataDir, config.KeyPrefixFile, config.Wiki.DryRun)
	if errE != nil {
		return errE
	}
	return a.ArchiveAll(ctx)
}
