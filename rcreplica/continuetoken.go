package rcreplica

import (
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// continueTokenType is the only token kind this reader issues: the "rc"
// prefix for recent-changes continuation.
const continueTokenType = "rc"

// buildContinueToken formats a continuation token as "<type>|<data>".
func buildContinueToken(tokenType string, data int64) string {
	return tokenType + "|" + strconv.FormatInt(data, 10)
}

// parseContinueToken parses a token built by buildContinueToken, checking
// that its type prefix matches expectedType.
func parseContinueToken(token, expectedType string) (int64, errors.E) {
	prefix, rest, ok := strings.Cut(token, "|")
	if !ok || prefix != expectedType {
		return 0, errors.WrapWith(errors.Errorf("malformed continue token: %q", token), errs.Parse)
	}
	data, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, errors.WrapWith(errors.Wrapf(err, "malformed continue token: %q", token), errs.Parse)
	}
	return data, nil
}
