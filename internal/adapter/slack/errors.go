package slack

import (
	"errors"

	"github.com/jeremyandrews/tag1bot/internal/platform/retry"
	"github.com/slack-go/slack"
)

// permanentErrors are Slack API error codes that retrying cannot fix.
var permanentErrors = map[string]struct{}{
	"invalid_auth":      {},
	"not_authed":        {},
	"account_inactive":  {},
	"token_revoked":     {},
	"missing_scope":     {},
	"channel_not_found": {},
	"not_in_channel":    {},
	"is_archived":       {},
	"msg_too_long":      {},
}

func classify(err error) retry.Action {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return retry.After
	}

	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		if _, ok := permanentErrors[resp.Err]; ok {
			return retry.Stop
		}
	}
	return retry.Retry
}
