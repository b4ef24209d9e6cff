package roomservice

import (
	"time"

	"github.com/livekit/protocol/auth"
)

const _DEFAULT_TOKEN_TTL = time.Minute * 10

func JoinGrant(roomID string, admin bool) *auth.VideoGrant {
	grant := &auth.VideoGrant{
		RoomJoin:  true,
		RoomAdmin: admin,
		Room:      roomID,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)
	return grant
}

// TokenSigner mints access tokens for realtime connections.
type TokenSigner struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func (s *TokenSigner) Sign(identity, name string, grant *auth.VideoGrant) (string, error) {
	token := auth.NewAccessToken(s.apiKey, s.apiSecret).
		SetIdentity(identity).
		SetValidFor(s.ttl).
		SetVideoGrant(grant)

	if name != "" {
		token.SetName(name)
	}
	return token.ToJWT()
}

func NewTokenSigner(apiKey, apiSecret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = _DEFAULT_TOKEN_TTL
	}
	return &TokenSigner{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
	}
}
