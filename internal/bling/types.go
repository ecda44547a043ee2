package bling

// Credential is the static client_id/client_secret pair for one Bling app.
// Supplied once at startup and never mutated.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// TokenPair is the result of a token-endpoint call. AccessToken is short-lived
// and must not outlive a single fetch cycle. On refresh responses an empty
// RefreshToken means the stored one is unchanged and stays in use; a non-empty
// value fully supersedes the prior token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Callback is the ephemeral code/state pair extracted from a browser return
// URL. Codes are single-use.
type Callback struct {
	Code  string
	State string
}

// Endpoints holds the Bling API URLs. Overridable so tests can point at a
// local server.
type Endpoints struct {
	TokenURL  string
	AuthURL   string
	OrdersURL string
}
