package main

import (
	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	tozdzerolog "gitlab.com/tozd/go/zerolog"

	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

const DefaultDataDir = ".cache/archiver"

// Config provides configuration.
// It is used as configuration for Kong command-line parser as well.
//
//nolint:lll
type Config struct {
	tozdzerolog.LoggingConfig `yaml:",inline"`

	Version       kong.VersionFlag  `                                                                         help:"Show program's version and exit."                     short:"V" yaml:"-"`
	Config        cli.ConfigFlag    `help:"Load configuration from a JSON or YAML file." name:"config" placeholder:"PATH" short:"c"                                                          yaml:"-"`
	Wiki          botcli.WikiConfig `embed:""                                                                  envprefix:"WIKI_"                                           prefix:"wiki."      yaml:"wiki"`
	DataDir       string            `default:"${defaultDataDir}"                                               help:"Directory for archiver state files." name:"data" placeholder:"DIR" type:"path" yaml:"dataDir"`
	KeyPrefixFile string            `                                                                          help:"File with a key prefix for key= template parameters (read, not consulted)." placeholder:"PATH" type:"path" yaml:"keyPrefixFile"`
}
