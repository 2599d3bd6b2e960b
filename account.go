package mc_launcher

import (
	"fmt"
	"github.com/gofrs/uuid/v5"
	"gopkg.in/yaml.v3"
	"time"
)

type AccountType int

const (
	AccountOffline AccountType = iota
	AccountMicrosoft
)

// OfflineAccessToken is handed to the game for accounts that never
// authenticate.
const OfflineAccessToken = "-"

var accountTypeNames = []string{"Offline", "Microsoft"}
var accountTypeKeys = []string{"offline", "msa"}

func (t AccountType) String() string {
	if int(t) < len(accountTypeNames) {
		return accountTypeNames[t]
	}
	return "Unknown"
}

func (t AccountType) MarshalYAML() (any, error) {
	if int(t) >= len(accountTypeKeys) {
		return nil, fmt.Errorf("invalid account type %d", t)
	}
	return accountTypeKeys[t], nil
}

func (t *AccountType) UnmarshalYAML(value *yaml.Node) error {
	for i, k := range accountTypeKeys {
		if value.Value == k {
			*t = AccountType(i)
			return nil
		}
	}
	return fmt.Errorf("invalid account type %q", value.Value)
}

// MicrosoftTokens caches every hop of the Microsoft login chain together with
// its expiry. The launch goroutine is the only writer.
type MicrosoftTokens struct {
	AccessToken     string    `yaml:"accessToken"`
	RefreshToken    string    `yaml:"refreshToken"`
	OAuthValidUntil time.Time `yaml:"oauthValidUntil"`

	XblToken      string    `yaml:"xblToken,omitempty"`
	Uhs           string    `yaml:"uhs,omitempty"`
	XblValidUntil time.Time `yaml:"xblValidUntil,omitempty"`

	XstsToken      string    `yaml:"xstsToken,omitempty"`
	Xuid           string    `yaml:"xuid,omitempty"`
	XstsValidUntil time.Time `yaml:"xstsValidUntil,omitempty"`

	McAccessToken string    `yaml:"mcAccessToken,omitempty"`
	McValidUntil  time.Time `yaml:"mcValidUntil,omitempty"`
}

type Account struct {
	Id        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Uuid      string           `yaml:"uuid"`
	Type      AccountType      `yaml:"type"`
	Microsoft *MicrosoftTokens `yaml:"microsoft,omitempty"`

	listeners Listeners[*Account]
}

// NewOfflineAccount creates an account with a random session uuid.
func NewOfflineAccount(name string) (*Account, error) {
	return newAccount(name, AccountOffline, nil)
}

// NewMicrosoftAccount wraps freshly linked tokens. Name and uuid stay empty
// until the profile has been fetched.
func NewMicrosoftAccount(tokens *MicrosoftTokens) (*Account, error) {
	return newAccount("", AccountMicrosoft, tokens)
}

func newAccount(name string, t AccountType, tokens *MicrosoftTokens) (*Account, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	session, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Account{
		Id:        id.String(),
		Name:      name,
		Uuid:      session.String(),
		Type:      t,
		Microsoft: tokens,
	}, nil
}

// AccessToken is the token passed to the game process.
func (a *Account) AccessToken() string {
	switch a.Type {
	case AccountMicrosoft:
		if a.Microsoft != nil {
			return a.Microsoft.McAccessToken
		}
		return ""
	default:
		return OfflineAccessToken
	}
}

// UserType is the value of the ${user_type} placeholder.
func (a *Account) UserType() string {
	if a.Type == AccountMicrosoft {
		return "msa"
	}
	return "legacy"
}

// SetProfile stores the name and uuid reported by the profile endpoint.
func (a *Account) SetProfile(name, uuid string) {
	a.Name = name
	a.Uuid = uuid
	a.listeners.Notify(a)
}

func (a *Account) OnChange(fn func(*Account)) (unsubscribe func()) {
	return a.listeners.Subscribe(fn)
}
