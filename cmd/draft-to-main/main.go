// Command draft-to-main flags articles moved straight from draft space into
// the main namespace.
package main

import (
	"context"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/bots/draftmain"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultWikiURL":    botcli.DefaultWikiURL,
		"defaultDaysToKeep": DefaultDaysToKeep,
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

	tracker := draftmain.New(config.Logger, wiki, reader, config.StateFile, config.DaysToKeep)
	return tracker.Update(ctx, config.Wiki.DryRun)
}
