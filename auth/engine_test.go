package auth

import (
	"context"
	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/mrmelon54/mc-launcher/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mc_launcher.NopEvents
	mu     sync.Mutex
	stages    []string
	labels    []string
	fractions []float64
	errors    []string
}

func (r *recordedEvents) Progress(fraction float64, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
	r.fractions = append(r.fractions, fraction)
}

func (r *recordedEvents) Stage(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, label)
}

func (r *recordedEvents) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// fakeMicrosoft emulates the login services. Requests are recorded by path.
type fakeMicrosoft struct {
	mu       sync.Mutex
	requests map[string]int
	bodies   map[string]string

	xstsErr    int64
	pending    int
	noProfile  bool
	deviceCode int
}

func (f *fakeMicrosoft) record(req *http.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests == nil {
		f.requests = make(map[string]int)
		f.bodies = make(map[string]string)
	}
	b, _ := io.ReadAll(req.Body)
	f.requests[req.URL.Path]++
	f.bodies[req.URL.Path] = string(b)
	return string(b)
}

func (f *fakeMicrosoft) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeMicrosoft) body(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeMicrosoft) router() *httprouter.Router {
	r := httprouter.New()
	r.POST("/consumers/oauth2/v2.0/devicecode", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		f.record(req)
		f.mu.Lock()
		f.deviceCode++
		n := f.deviceCode
		f.mu.Unlock()
		test.WriteJSON(rw, http.StatusOK, map[string]any{
			"user_code":        "ABCD-EFGH",
			"device_code":      "device-" + string(rune('0'+n)),
			"verification_uri": "https://www.microsoft.com/link",
			"expires_in":       12,
			"interval":         5,
		})
	})
	r.POST("/consumers/oauth2/v2.0/token", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		body := f.record(req)
		form := parseForm(body)
		switch form["grant_type"] {
		case "refresh_token":
			if form["refresh_token"] != "refresh" {
				test.WriteJSON(rw, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
				return
			}
		case deviceCodeGrant:
			f.mu.Lock()
			pending := f.pending
			if pending > 0 {
				f.pending--
			}
			f.mu.Unlock()
			switch {
			case form["device_code"] == "device-expired":
				test.WriteJSON(rw, http.StatusBadRequest, map[string]any{"error": "expired_token"})
				return
			case pending > 0:
				test.WriteJSON(rw, http.StatusBadRequest, map[string]any{"error": "authorization_pending"})
				return
			}
		}
		test.WriteJSON(rw, http.StatusOK, map[string]any{
			"token_type":    "Bearer",
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_in":    3600,
		})
	})
	r.POST("/user/authenticate", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		f.record(req)
		test.WriteJSON(rw, http.StatusOK, map[string]any{
			"Token":         "xbl",
			"NotAfter":      "2024-04-15T12:00:00.1234567Z",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "userhash"}}},
		})
	})
	r.POST("/xsts/authorize", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		f.record(req)
		if f.xstsErr != 0 {
			test.WriteJSON(rw, http.StatusUnauthorized, map[string]any{"XErr": f.xstsErr, "Message": ""})
			return
		}
		test.WriteJSON(rw, http.StatusOK, map[string]any{
			"Token":         "xsts",
			"NotAfter":      "2024-04-02T04:00:00Z",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "userhash", "xid": "2535"}}},
		})
	})
	r.POST("/authentication/login_with_xbox", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		f.record(req)
		test.WriteJSON(rw, http.StatusOK, map[string]any{"access_token": "mc-token", "expires_in": 86400})
	})
	r.GET("/minecraft/profile", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		f.record(req)
		if req.Header.Get("Authorization") != "Bearer mc-token" {
			test.WriteJSON(rw, http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
			return
		}
		if f.noProfile {
			test.WriteJSON(rw, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
			return
		}
		test.WriteJSON(rw, http.StatusOK, map[string]any{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"})
	})
	return r
}

func parseForm(body string) map[string]string {
	form := make(map[string]string)
	values, _ := url.ParseQuery(body)
	for k, v := range values {
		form[k] = v[0]
	}
	return form
}

func newTestEngine(t *testing.T, fake *fakeMicrosoft, events mc_launcher.Events) *Engine {
	e := NewEngine(test.NewTestClient(fake.router()), "", events, zaptest.NewLogger(t))
	e.now = func() time.Time { return testNow }
	return e
}

func TestEngine_Offline(t *testing.T) {
	fake := &fakeMicrosoft{}
	events := &recordedEvents{}
	acc, err := mc_launcher.NewOfflineAccount("Steve")
	require.NoError(t, err)
	require.NoError(t, newTestEngine(t, fake, events).Authenticate(context.Background(), acc))
	assert.Equal(t, mc_launcher.OfflineAccessToken, acc.AccessToken())
	assert.Empty(t, fake.requests)
	assert.Empty(t, events.stages)
}

func TestEngine_Microsoft(t *testing.T) {
	fake := &fakeMicrosoft{}
	events := &recordedEvents{}
	e := newTestEngine(t, fake, events)
	acc, err := mc_launcher.NewMicrosoftAccount(&mc_launcher.MicrosoftTokens{RefreshToken: "refresh"})
	require.NoError(t, err)
	var changed int
	acc.OnChange(func(*mc_launcher.Account) { changed++ })

	require.NoError(t, e.Authenticate(context.Background(), acc))
	assert.Equal(t, "Notch", acc.Name)
	assert.Equal(t, "069a79f444e94726a5befca90e38aaf5", acc.Uuid)
	assert.Equal(t, "mc-token", acc.AccessToken())
	assert.Equal(t, "2535", acc.Microsoft.Xuid)
	assert.Equal(t, testNow.Add(24*time.Hour), acc.Microsoft.McValidUntil)
	assert.Equal(t, 1, changed)

	assert.Equal(t, "d=access", gjson.Get(fake.body("/user/authenticate"), "Properties.RpsTicket").String())
	assert.Equal(t, "xbl", gjson.Get(fake.body("/xsts/authorize"), "Properties.UserTokens.0").String())
	assert.Equal(t, "XBL3.0 x=userhash;xsts", gjson.Get(fake.body("/authentication/login_with_xbox"), "identityToken").String())

	assert.Equal(t, []string{StageAuthentication, ""}, events.stages)
	assert.Equal(t, []string{"Checking access token", "Authenticating via Xbox", "Obtaining XSTS token", "Getting access token", "Getting profile"}, events.labels)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.6, 0.8, 1}, events.fractions, 1e-9)
	assert.Empty(t, events.errors)

	// every token is still valid so only the profile is fetched again
	require.NoError(t, e.Authenticate(context.Background(), acc))
	for _, p := range []string{"/consumers/oauth2/v2.0/token", "/user/authenticate", "/xsts/authorize", "/authentication/login_with_xbox"} {
		assert.Equal(t, 1, fake.count(p), p)
	}
	assert.Equal(t, 2, fake.count("/minecraft/profile"))

	// an xsts token inside the expiry margin is renewed
	acc.Microsoft.XstsValidUntil = testNow.Add(4 * time.Second)
	require.NoError(t, e.Authenticate(context.Background(), acc))
	assert.Equal(t, 2, fake.count("/xsts/authorize"))
	assert.Equal(t, 1, fake.count("/user/authenticate"))
}

func TestEngine_XstsError(t *testing.T) {
	for code, msg := range map[int64]string{
		2148916233: "Xbox Error 2148916233: You don't have an Xbox account!",
		2148916235: "Xbox Error 2148916235: Xbox Live is banned in your country!",
		2148916237: "Xbox Error 2148916237: Your account needs adult verification (South Korea)",
		2148916238: "Xbox Error 2148916238: The account is a child and cannot proceed unless the account is added to a Family by an adult.",
		1:          "Xbox Error 1: Unknown",
	} {
		t.Run(msg, func(t *testing.T) {
			events := &recordedEvents{}
			e := newTestEngine(t, &fakeMicrosoft{xstsErr: code}, events)
			acc, err := mc_launcher.NewMicrosoftAccount(&mc_launcher.MicrosoftTokens{RefreshToken: "refresh"})
			require.NoError(t, err)

			err = e.Authenticate(context.Background(), acc)
			var xboxErr *XboxError
			require.ErrorAs(t, err, &xboxErr)
			assert.Equal(t, code, xboxErr.Code)
			assert.Equal(t, []string{msg}, events.errors)
		})
	}
}

func TestEngine_Failures(t *testing.T) {
	t.Run("bad refresh token", func(t *testing.T) {
		events := &recordedEvents{}
		acc, err := mc_launcher.NewMicrosoftAccount(&mc_launcher.MicrosoftTokens{RefreshToken: "revoked"})
		require.NoError(t, err)
		err = newTestEngine(t, &fakeMicrosoft{}, events).Authenticate(context.Background(), acc)
		var tokenErr *TokenError
		require.ErrorAs(t, err, &tokenErr)
		assert.Equal(t, "invalid_grant", tokenErr.Code)
		assert.Equal(t, []string{"Failed check access token"}, events.errors)
	})
	t.Run("no profile", func(t *testing.T) {
		events := &recordedEvents{}
		acc, err := mc_launcher.NewMicrosoftAccount(&mc_launcher.MicrosoftTokens{RefreshToken: "refresh"})
		require.NoError(t, err)
		err = newTestEngine(t, &fakeMicrosoft{noProfile: true}, events).Authenticate(context.Background(), acc)
		assert.ErrorIs(t, err, ErrNoProfile)
		assert.Equal(t, []string{"Could not get Minecraft profile"}, events.errors)
	})
	t.Run("cancelled", func(t *testing.T) {
		events := &recordedEvents{}
		fake := &fakeMicrosoft{}
		acc, err := mc_launcher.NewMicrosoftAccount(&mc_launcher.MicrosoftTokens{RefreshToken: "refresh"})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = newTestEngine(t, fake, events).Authenticate(ctx, acc)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, events.errors)
		assert.Zero(t, fake.count("/consumers/oauth2/v2.0/token"))
	})
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	assert.True(t, exp.Equal(tokenExpiry(token)))
	assert.True(t, tokenExpiry("not a jwt").IsZero())
}
