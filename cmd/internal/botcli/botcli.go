// Package botcli gives every bot binary under cmd/ the same wiki-session
// bootstrap, following config.go's embedded PostgresConfig/ElasticConfig
// convention for shared, reusable flag groups.
package botcli

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/rcreplica"
	"gitlab.com/orlodrimbot/mwbot/transport"
)

// DefaultWikiURL is the api.php endpoint every bot targets by default.
const DefaultWikiURL = "https://fr.wikipedia.org/w/api.php"

const userAgent = "mwbot/0.1 (+https://gitlab.com/orlodrimbot/mwbot)"

// WikiConfig names the wiki and account a bot binary logs into, and whether
// it should only log its intended edits.
//
//nolint:lll
type WikiConfig struct {
	URL         string               `default:"${defaultWikiURL}" help:"URL of the wiki's api.php endpoint." placeholder:"URL"  yaml:"url"`
	Username    string               `                                                                       help:"Bot account username."                                    placeholder:"NAME" yaml:"username"`
	Password    kong.FileContentFlag `                                                                       help:"File with the bot account's password."                    placeholder:"PATH" yaml:"password"`
	SessionFile string               `                                                                       help:"Session file persisting login between runs." name:"session" placeholder:"PATH" yaml:"sessionFile"`
	DryRun      bool                 `                                                                       help:"Log intended edits instead of making them."                                    yaml:"dryRun"`
}

// Open builds a logged-in Wiki, restoring a saved session from SessionFile
// when one matches these credentials and falling back to a fresh Login
// otherwise.
func (c *WikiConfig) Open(ctx context.Context, logger zerolog.Logger) (*mw.Wiki, errors.E) {
	client, err := transport.NewClient(transport.WithUserAgent(userAgent))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	wiki, err := mw.NewWiki(client, c.URL)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	params := mw.LoginParams{
		WikiURL:        c.URL,
		Username:       c.Username,
		Password:       string(c.Password),
		UseClientLogin: true,
		OATHToken:      mw.ReadOATHTokenFromTTY,
	}

	if c.SessionFile != "" {
		if loadErr := wiki.Load(c.SessionFile, params); loadErr == nil {
			return wiki, nil
		} else { //nolint:revive
			logger.Debug().Err(loadErr).Msg("no usable saved session, logging in")
		}
	}

	if err := wiki.Login(ctx, params); err != nil {
		return nil, err
	}
	if c.SessionFile != "" {
		if err := wiki.Save(c.SessionFile); err != nil {
			logger.Warn().Err(err).Msg("failed to persist session")
		}
	}
	return wiki, nil
}

// OpenReplica opens the recent-changes replica database at path, or returns
// an EmptyReader when path is empty so bots can run without one configured.
func OpenReplica(path string) (rcreplica.Reader, errors.E) {
	if path == "" {
		return rcreplica.EmptyReader{}, nil
	}
	return rcreplica.Open(path)
}
