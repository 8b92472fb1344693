package main

import (
	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	tozdzerolog "gitlab.com/tozd/go/zerolog"

	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

const DefaultDaysToKeep = "90"

// Config provides configuration.
// It is used as configuration for Kong command-line parser as well.
//
//nolint:lll
type Config struct {
	tozdzerolog.LoggingConfig `yaml:",inline"`

	Version     kong.VersionFlag  `                                                                         help:"Show program's version and exit."                                  short:"V" yaml:"-"`
	Config      cli.ConfigFlag    `help:"Load configuration from a JSON or YAML file." name:"config" placeholder:"PATH" short:"c"                                                               yaml:"-"`
	Wiki        botcli.WikiConfig `embed:""                                                                  envprefix:"WIKI_"                                                      prefix:"wiki."  yaml:"wiki"`
	StateFile   string            `help:"File tracking previously seen draft moves." name:"state" placeholder:"PATH" required:"" type:"path"                                                     yaml:"stateFile"`
	ReplicaPath string            `help:"Path to a recent-changes replica database." name:"replica" placeholder:"PATH" type:"path"                                                               yaml:"replicaPath"`
	DaysToKeep  int               `default:"${defaultDaysToKeep}"                                            help:"Days a draft-to-main move is tracked before being dropped."                     yaml:"daysToKeep"`
}
