package main

import (
	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	tozdzerolog "gitlab.com/tozd/go/zerolog"

	"gitlab.com/orlodrimbot/mwbot/cmd/internal/botcli"
)

const DefaultModel = "gpt-4o-mini"

// Config provides configuration.
// It is used as configuration for Kong command-line parser as well.
//
//nolint:lll
type Config struct {
	tozdzerolog.LoggingConfig `yaml:",inline"`

	Version kong.VersionFlag     `                                                                         help:"Show program's version and exit."      short:"V" yaml:"-"`
	Config  cli.ConfigFlag       `help:"Load configuration from a JSON or YAML file." name:"config" placeholder:"PATH" short:"c"                                          yaml:"-"`
	Wiki    botcli.WikiConfig    `embed:""                                                                  envprefix:"WIKI_"                             prefix:"wiki."  yaml:"wiki"`
	APIKey  kong.FileContentFlag `                                                                         help:"File with the LLM provider's API key." placeholder:"PATH" required:""    yaml:"-"`
	Model   string               `default:"${defaultModel}"                                                 help:"LLM model name to use for classification."                                yaml:"model"`
	Pages   []string             `arg:""                                                                    help:"Talk pages to classify the latest content of."                            yaml:"-"`
}
