package main

import (
	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	tozdzerolog "gitlab.com/tozd/go/zerolog"

	"gitlab.com/orlodrimbot/mwbot/bots/newsletter"
	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

//nolint:gochecknoglobals
var defaultNewsletterConfig = newsletter.DefaultConfig()

// Config provides configuration.
// It is used as configuration for Kong command-line parser as well.
//
//nolint:lll
type Config struct {
	tozdzerolog.LoggingConfig `yaml:",inline"`

	Version            kong.VersionFlag  `                                                                         help:"Show program's version and exit." short:"V"                 yaml:"-"`
	Config             cli.ConfigFlag    `help:"Load configuration from a JSON or YAML file." name:"config" placeholder:"PATH" short:"c"                                              yaml:"-"`
	Wiki               botcli.WikiConfig `embed:""                                                                  envprefix:"WIKI_"                        prefix:"wiki."           yaml:"wiki"`
	StateFile          string            `help:"File tracking the last issue distributed." name:"state" placeholder:"PATH" required:"" type:"path"                                   yaml:"stateFile"`
	ReplicaPath        string            `help:"Path to a recent-changes replica database." name:"replica" placeholder:"PATH" type:"path"                                            yaml:"replicaPath"`
	SubpagesPrefix     string            `default:"${defaultSubpagesPrefix}"     help:"Prefix of newsletter issue subpages."                                                         yaml:"subpagesPrefix"`
	SubscriptionPage   string            `default:"${defaultSubscriptionPage}"   help:"Page listing subscribers."                                                                    yaml:"subscriptionPage"`
	EnableTwitter      bool              `default:"${defaultEnableTwitter}"      help:"Queue tweet proposals alongside distribution."                                                yaml:"enableTwitter"`
	TweetProposalsPage string            `default:"${defaultTweetProposalsPage}" help:"Page where proposed tweets are listed."                                                       yaml:"tweetProposalsPage"`
	ForcedIssue        string            `help:"Force distribution of a specific issue, bypassing the schedule." placeholder:"NAME"                                                  yaml:"-"`
	FromPage           string            `help:"Only process subscriber pages from this one onward." placeholder:"TITLE"                                                             yaml:"-"`
	SinglePage         string            `help:"Only process this one subscriber page." placeholder:"TITLE"                                                                          yaml:"-"`
	Force              bool              `help:"Publish even if the issue fails the readiness or ordering checks."                                                                               yaml:"-"`
}

func (c *Config) newsletterConfig() newsletter.Config {
	return newsletter.Config{
		SubpagesPrefix:     c.SubpagesPrefix,
		SubscriptionPage:   c.SubscriptionPage,
		EnableTwitter:      c.EnableTwitter,
		TweetProposalsPage: c.TweetProposalsPage,
	}
}
