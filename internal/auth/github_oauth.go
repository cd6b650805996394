package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/awesome-events/internal/identity"
)

// ProviderGitHub はGitHubのprovider名。usersテーブルのproviderカラムに保存される。
const ProviderGitHub = "github"

const (
	defaultGitHubAuthURL  = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL = "https://github.com/login/oauth/access_token"
	defaultGitHubUserURL  = "https://api.github.com/user"
)

// URLValidator は外部URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
}

// GitHubOAuthProvider はGitHub OAuthによる認証を提供する。
type GitHubOAuthProvider struct {
	config    GitHubOAuthConfig
	client    *http.Client
	validator URLValidator
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
// clientがnilの場合はhttp.DefaultClientを使う。
// validatorを指定すると、検証に通らないアイコンURLは受け取らなかったものとして扱う。
func NewGitHubOAuthProvider(config GitHubOAuthConfig, client *http.Client, validator URLValidator) *GitHubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGitHubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGitHubUserURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GitHubOAuthProvider{config: config, client: client, validator: validator}
}

// GetLoginURL はGitHubの認可URLを生成する。プロフィールの参照のみを要求する。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {"read:user"},
		"state":        {state},
		"allow_signup": {"true"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

type githubTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type githubUser struct {
	ID        int64   `json:"id"`
	Login     *string `json:"login"`
	AvatarURL *string `json:"avatar_url"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、認証結果を返す。
// GitHubのid、login、avatar_urlをそれぞれuid、nickname、imageに対応付ける。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error) {
	token, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	user, err := p.fetchUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	provider := ProviderGitHub
	uid := strconv.FormatInt(user.ID, 10)
	image := user.AvatarURL
	if image != nil && p.validator != nil && p.validator.ValidateURL(*image) != nil {
		image = nil
	}

	return &identity.Assertion{
		Provider: &provider,
		UID:      &uid,
		Info: identity.Info{
			Nickname: user.Login,
			Image:    image,
		},
	}, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
// GitHubは失敗時も200でerrorフィールドを返すため、両方を確認する。
func (p *GitHubOAuthProvider) exchangeToken(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.Error != "" {
		return "", fmt.Errorf("token exchange failed: %s: %s", tokenResp.Error, tokenResp.ErrorDescription)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return tokenResp.AccessToken, nil
}

// fetchUser はアクセストークンで認証ユーザーのプロフィールを取得する。
func (p *GitHubOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("empty id in user response")
	}
	return &user, nil
}

// maxResponseBytes はGitHub APIレスポンスとして読み込む上限。
const maxResponseBytes = 1 << 20

func (p *GitHubOAuthProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
