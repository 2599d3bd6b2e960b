package auth

import (
	"context"
	"fmt"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/tidwall/gjson"
	"time"
)

const (
	DefaultClientId = "95984717-05f1-4b52-8a66-064d0e1e5b55"
	DeviceCodeScope = "XboxLive.signin offline_access"
	deviceCodeGrant = "urn:ietf:params:oauth:grant-type:device_code"
)

type Endpoints struct {
	DeviceCode string
	Token      string
	Xbl        string
	Xsts       string
	McLogin    string
	McProfile  string
}

var DefaultEndpoints = Endpoints{
	DeviceCode: "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode",
	Token:      "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
	Xbl:        "https://user.auth.xboxlive.com/user/authenticate",
	Xsts:       "https://xsts.auth.xboxlive.com/xsts/authorize",
	McLogin:    "https://api.minecraftservices.com/authentication/login_with_xbox",
	McProfile:  "https://api.minecraftservices.com/minecraft/profile",
}

// DeviceCode is the response of the device authorization endpoint.
type DeviceCode struct {
	UserCode        string `json:"user_code"`
	DeviceCode      string `json:"device_code"`
	VerificationUri string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type xblProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xstsProperties struct {
	SandboxId  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

type xboxRequest struct {
	Properties   any    `json:"Properties"`
	RelyingParty string `json:"RelyingParty"`
	TokenType    string `json:"TokenType"`
}

func (e *Engine) request(ctx context.Context) *resty.Request {
	return e.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
}

// RequestDeviceCode starts a device authorization.
func (e *Engine) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	var code DeviceCode
	resp, err := e.request(ctx).
		SetFormData(map[string]string{"client_id": e.ClientId, "scope": DeviceCodeScope}).
		ForceContentType("application/json").
		SetResult(&code).
		Post(e.Endpoints.DeviceCode)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("device code: %s", resp.Status())
	}
	if code.DeviceCode == "" {
		return nil, fmt.Errorf("device code: empty response")
	}
	return &code, nil
}

// PollToken asks the token endpoint whether the device code was approved.
// ErrAuthorizationPending and ErrSlowDown mean try again later, a
// *TokenError means the code is no longer usable.
func (e *Engine) PollToken(ctx context.Context, deviceCode string) (*mc_launcher.MicrosoftTokens, error) {
	return e.tokenRequest(ctx, map[string]string{
		"grant_type":  deviceCodeGrant,
		"client_id":   e.ClientId,
		"device_code": deviceCode,
	})
}

func (e *Engine) refreshOAuth(ctx context.Context, t *mc_launcher.MicrosoftTokens) error {
	if t.AccessToken != "" && e.valid(t.OAuthValidUntil) {
		return nil
	}
	if t.RefreshToken == "" {
		return fmt.Errorf("no refresh token")
	}
	fresh, err := e.tokenRequest(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     e.ClientId,
		"refresh_token": t.RefreshToken,
		"scope":         DeviceCodeScope,
	})
	if err != nil {
		return err
	}
	t.AccessToken = fresh.AccessToken
	t.RefreshToken = fresh.RefreshToken
	t.OAuthValidUntil = fresh.OAuthValidUntil
	return nil
}

func (e *Engine) tokenRequest(ctx context.Context, form map[string]string) (*mc_launcher.MicrosoftTokens, error) {
	resp, err := e.request(ctx).SetFormData(form).Post(e.Endpoints.Token)
	if err != nil {
		return nil, err
	}
	body := gjson.ParseBytes(resp.Body())
	switch code := body.Get("error").String(); code {
	case "":
	case "authorization_pending":
		return nil, ErrAuthorizationPending
	case "slow_down":
		return nil, ErrSlowDown
	default:
		return nil, &TokenError{Code: code, Description: body.Get("error_description").String()}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("token: %s", resp.Status())
	}
	if body.Get("token_type").String() != "Bearer" || !body.Get("access_token").Exists() {
		return nil, fmt.Errorf("token: unexpected response")
	}
	return &mc_launcher.MicrosoftTokens{
		AccessToken:     body.Get("access_token").String(),
		RefreshToken:    body.Get("refresh_token").String(),
		OAuthValidUntil: e.now().Add(time.Duration(body.Get("expires_in").Int()) * time.Second),
	}, nil
}

func (e *Engine) xboxLive(ctx context.Context, t *mc_launcher.MicrosoftTokens) error {
	if t.XblToken != "" && e.valid(t.XblValidUntil) {
		return nil
	}
	resp, err := e.request(ctx).SetBody(xboxRequest{
		Properties: xblProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  "d=" + t.AccessToken,
		},
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
	}).Post(e.Endpoints.Xbl)
	if err != nil {
		return err
	}
	body := gjson.ParseBytes(resp.Body())
	token := body.Get("Token")
	if !token.Exists() {
		return fmt.Errorf("xbl: %s", resp.Status())
	}
	t.XblToken = token.String()
	t.Uhs = body.Get("DisplayClaims.xui.0.uhs").String()
	t.XblValidUntil = e.notAfter(body)
	return nil
}

func (e *Engine) xsts(ctx context.Context, t *mc_launcher.MicrosoftTokens) error {
	if t.XstsToken != "" && e.valid(t.XstsValidUntil) {
		return nil
	}
	resp, err := e.request(ctx).SetBody(xboxRequest{
		Properties: xstsProperties{
			SandboxId:  "RETAIL",
			UserTokens: []string{t.XblToken},
		},
		RelyingParty: "rp://api.minecraftservices.com/",
		TokenType:    "JWT",
	}).Post(e.Endpoints.Xsts)
	if err != nil {
		return err
	}
	body := gjson.ParseBytes(resp.Body())
	token := body.Get("Token")
	if !token.Exists() {
		return newXboxError(body.Get("XErr").Int(), body.Get("Message").String())
	}
	t.XstsToken = token.String()
	if uhs := body.Get("DisplayClaims.xui.0.uhs").String(); uhs != "" {
		t.Uhs = uhs
	}
	t.Xuid = body.Get("DisplayClaims.xui.0.xid").String()
	t.XstsValidUntil = e.notAfter(body)
	return nil
}

func (e *Engine) minecraftLogin(ctx context.Context, t *mc_launcher.MicrosoftTokens) error {
	if t.McAccessToken != "" && e.valid(t.McValidUntil) {
		return nil
	}
	resp, err := e.request(ctx).SetBody(map[string]string{
		"identityToken": "XBL3.0 x=" + t.Uhs + ";" + t.XstsToken,
	}).Post(e.Endpoints.McLogin)
	if err != nil {
		return err
	}
	body := gjson.ParseBytes(resp.Body())
	if msg := body.Get("error").String(); msg != "" {
		return fmt.Errorf("minecraft login: %s", msg)
	}
	token := body.Get("access_token")
	if resp.IsError() || !token.Exists() {
		return fmt.Errorf("minecraft login: %s", resp.Status())
	}
	t.McAccessToken = token.String()
	if expires := body.Get("expires_in").Int(); expires > 0 {
		t.McValidUntil = e.now().Add(time.Duration(expires) * time.Second)
	} else {
		t.McValidUntil = tokenExpiry(t.McAccessToken)
	}
	return nil
}

func (e *Engine) profile(ctx context.Context, acc *mc_launcher.Account) error {
	resp, err := e.request(ctx).
		SetAuthToken(acc.Microsoft.McAccessToken).
		Get(e.Endpoints.McProfile)
	if err != nil {
		return err
	}
	body := gjson.ParseBytes(resp.Body())
	if resp.StatusCode() == 404 || body.Get("error").Exists() {
		return ErrNoProfile
	}
	if resp.IsError() {
		return fmt.Errorf("profile: %s", resp.Status())
	}
	name, id := body.Get("name").String(), body.Get("id").String()
	if name == "" || id == "" {
		return ErrNoProfile
	}
	acc.SetProfile(name, id)
	return nil
}

// notAfter reads the expiry of an Xbox token response.
func (e *Engine) notAfter(body gjson.Result) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, body.Get("NotAfter").String()); err == nil {
		return t
	}
	return time.Time{}
}

// tokenExpiry reads the exp claim without verifying the signature, the
// token is only ever handed on to the game.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
