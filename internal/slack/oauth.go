package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/oauth2"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/logging"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
)

const (
	// AuthorizeURL is Slack's OAuth v2 authorization endpoint.
	AuthorizeURL = "https://slack.com/oauth/v2/authorize"

	// DefaultAPIURL mirrors slack-go's default Web API base URL.
	DefaultAPIURL = "https://slack.com/api/"
)

// BridgeConfig configures the Slack OAuth bridge.
type BridgeConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// UserScopes are requested as user_scope so Slack issues a user token
	// (xoxp) acting as the authenticated user, not a bot token.
	UserScopes []string

	// APIURL overrides the Slack Web API base URL (tests). Must end with a
	// slash. Empty means DefaultAPIURL.
	APIURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Bridge implements the oauth.UpstreamProvider interface against Slack's
// OAuth v2 endpoints.
type Bridge struct {
	oauthConfig *oauth2.Config
	userScopes  []string
	apiURL      string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewBridge creates a Slack OAuth bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("slack client credentials are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("slack redirect URL is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthorizeURL,
				TokenURL: apiURL + "oauth.v2.access",
			},
		},
		userScopes: cfg.UserScopes,
		apiURL:     apiURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// AuthCodeURL builds the Slack authorization URL for the given signed state
// and S256 code challenge. Scopes go out as user_scope so the resulting
// token acts as the user.
func (b *Bridge) AuthCodeURL(state, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("user_scope", strings.Join(b.userScopes, ",")),
	}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return b.oauthConfig.AuthCodeURL(state, opts...)
}

// oauthV2Response is the oauth.v2.access response shape. slack-go's exchange
// helper cannot carry a code_verifier, so the bridge posts the form itself
// and decodes into this.
type oauthV2Response struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`

	Team struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`

	Enterprise *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"enterprise"`

	AuthedUser struct {
		ID           string `json:"id"`
		Scope        string `json:"scope"`
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"authed_user"`

	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Exchange redeems a Slack authorization code with the stored code verifier
// and resolves the identity the user authenticated as.
func (b *Bridge) Exchange(ctx context.Context, code, codeVerifier string) (*oauth.UserInfo, *oauth2.Token, error) {
	resp, err := b.redeemCode(ctx, code, codeVerifier)
	if err != nil {
		return nil, nil, err
	}

	token := b.tokenFromResponse(resp)
	if token.AccessToken == "" {
		return nil, nil, fmt.Errorf("slack oauth.v2.access returned no usable token")
	}

	user, err := b.resolveIdentity(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve slack identity: %w", err)
	}

	// auth.test omits the team name on some token types
	if user.TeamName == "" {
		user.TeamName = resp.Team.Name
	}
	if resp.Enterprise != nil {
		user.EnterpriseID = resp.Enterprise.ID
	}

	b.logger.Debug("Slack code exchange complete",
		logging.UserHash(user.UserID),
		logging.Team(user.TeamID),
		"token", logging.SanitizeToken(token.AccessToken),
	)

	return user, token, nil
}

// redeemCode posts the oauth.v2.access form directly so the PKCE
// code_verifier can be included.
func (b *Bridge) redeemCode(ctx context.Context, code, codeVerifier string) (*oauthV2Response, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", b.oauthConfig.ClientID)
	form.Set("client_secret", b.oauthConfig.ClientSecret)
	form.Set("redirect_uri", b.oauthConfig.RedirectURL)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.oauthConfig.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build oauth.v2.access request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth.v2.access request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth.v2.access response: %w", err)
	}

	var resp oauthV2Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse oauth.v2.access response: %w", err)
	}

	if !resp.OK {
		return nil, fmt.Errorf("slack oauth.v2.access error: %s", resp.Error)
	}

	return &resp, nil
}

// tokenFromResponse prefers the authed_user token (xoxp, acts as the user)
// over the top-level bot token.
func (b *Bridge) tokenFromResponse(resp *oauthV2Response) *oauth2.Token {
	accessToken := resp.AuthedUser.AccessToken
	refreshToken := resp.AuthedUser.RefreshToken
	expiresIn := resp.AuthedUser.ExpiresIn

	if accessToken == "" {
		accessToken = resp.AccessToken
		refreshToken = resp.RefreshToken
		expiresIn = resp.ExpiresIn
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
	}
	// Zero expiry means the token does not rotate
	if expiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return token
}

// resolveIdentity calls auth.test with the freshly issued token.
func (b *Bridge) resolveIdentity(ctx context.Context, accessToken string) (*oauth.UserInfo, error) {
	api := slackapi.New(accessToken,
		slackapi.OptionAPIURL(b.apiURL),
		slackapi.OptionHTTPClient(b.httpClient),
	)

	authTest, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth.UserInfo{
		UserID:       authTest.UserID,
		UserName:     authTest.User,
		TeamID:       authTest.TeamID,
		TeamName:     authTest.Team,
		TeamURL:      authTest.URL,
		EnterpriseID: authTest.EnterpriseID,
	}, nil
}
