package httpclient

import "context"

// TokenStorageKey is the storage key of the bearer token.
const TokenStorageKey = "auth_token"

// AuthToken returns the stored bearer token, or "" when none is stored or the
// store cannot be read.
func (c *Client) AuthToken(ctx context.Context) string {
	token, ok, err := c.store.Get(ctx, TokenStorageKey)
	if err != nil {
		if c.strict {
			c.logger.Warn().Err(err).Msg("error getting auth token")
		} else {
			c.logger.Debug().Err(err).Msg("error getting auth token")
		}
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// SetAuthToken stores the bearer token used by later requests. Storage
// failures are logged, not returned.
func (c *Client) SetAuthToken(ctx context.Context, token string) {
	if err := c.store.Set(ctx, TokenStorageKey, token); err != nil {
		c.logger.Error().Err(err).Msg("error setting auth token")
	}
}

// ClearAuthToken deletes the stored bearer token. Storage failures are logged,
// not returned.
func (c *Client) ClearAuthToken(ctx context.Context) {
	if err := c.store.Remove(ctx, TokenStorageKey); err != nil {
		c.logger.Error().Err(err).Msg("error clearing auth token")
	}
}
