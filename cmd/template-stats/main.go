// Command template-stats publishes a report of template parameter shapes
// across the wiki; it does not count how often templates are used.
package main

import (
	"context"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/bots/templatestats"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

func main() {
	var config Config
	cli.Run(&config, kong.Vars{
		"defaultWikiURL":    botcli.DefaultWikiURL,
		"defaultReportPage": DefaultReportPage,
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

	reporter := templatestats.New(config.Logger, wiki, config.ReportPage)
	return reporter.Run(ctx)
}
