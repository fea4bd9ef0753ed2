package auth

import "golang.org/x/oauth2"

// TokenSet is the pair of credentials held by an [Authorizer].
//
// Empty strings mean "no token".
type TokenSet struct {
	AccessToken  string
	RefreshToken string
}

// session is the authorizer's owned state: the token pair plus the single refresh timer.
//
// It is only changed through the transition methods below, each returning the next state.
//
// gen advances on every token change so a result fetched against an older session can be recognised and dropped.
type session struct {
	tokens  TokenSet
	refresh Timer
	gen     uint64
}

// exchanged replaces both tokens with the result of an authorization-code exchange.
func (s session) exchanged(tok *oauth2.Token) session {
	s.tokens = TokenSet{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	s.gen++
	return s
}

// refreshed applies a refresh response. Tokens the response omits are retained.
func (s session) refreshed(tok *oauth2.Token) session {
	if tok.AccessToken != "" {
		s.tokens.AccessToken = tok.AccessToken
	}
	if tok.RefreshToken != "" {
		s.tokens.RefreshToken = tok.RefreshToken
	}
	s.gen++
	return s
}

// rearmed swaps in next as the only live refresh timer.
func (s session) rearmed(next Timer) session {
	if s.refresh != nil {
		s.refresh.Stop()
	}
	s.refresh = next
	return s
}

// cleared drops both tokens and cancels the refresh timer.
func (s session) cleared() session {
	if s.refresh != nil {
		s.refresh.Stop()
	}
	return session{gen: s.gen + 1}
}

func (s session) canRefresh() bool {
	return s.tokens.RefreshToken != ""
}
