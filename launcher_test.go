package mc_launcher

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"testing"
)

func TestAccount_AccessToken(t *testing.T) {
	offline, err := NewOfflineAccount("Steve")
	require.NoError(t, err)
	assert.Equal(t, "-", offline.AccessToken())
	assert.Equal(t, "legacy", offline.UserType())
	assert.NotEmpty(t, offline.Id)
	assert.NotEmpty(t, offline.Uuid)
	assert.NotEqual(t, offline.Id, offline.Uuid)

	msa, err := NewMicrosoftAccount(&MicrosoftTokens{McAccessToken: "mc-token"})
	require.NoError(t, err)
	assert.Equal(t, "mc-token", msa.AccessToken())
	assert.Equal(t, "msa", msa.UserType())
}

func TestAccount_SetProfileNotifies(t *testing.T) {
	a, err := NewMicrosoftAccount(&MicrosoftTokens{})
	require.NoError(t, err)

	var seen []string
	unsubscribe := a.OnChange(func(a *Account) { seen = append(seen, a.Name) })
	a.SetProfile("Alex", "1234")
	unsubscribe()
	a.SetProfile("Steve", "5678")

	assert.Equal(t, []string{"Alex"}, seen)
	assert.Equal(t, "5678", a.Uuid)
}

func TestInstance_SetIconNotifies(t *testing.T) {
	i := &Instance{Name: "Vanilla"}
	var icon string
	i.OnChange(func(i *Instance) { icon = i.Icon })
	i.SetIcon("grass")
	assert.Equal(t, "grass", icon)
}

func TestAccountType_YAML(t *testing.T) {
	out, err := yaml.Marshal(&Account{Id: "a", Name: "b", Type: AccountMicrosoft})
	require.NoError(t, err)
	assert.Contains(t, string(out), "type: msa")

	var a Account
	require.NoError(t, yaml.Unmarshal(out, &a))
	assert.Equal(t, AccountMicrosoft, a.Type)

	assert.Error(t, yaml.Unmarshal([]byte("type: mojang"), &a))
}

func TestState_Lookup(t *testing.T) {
	s := &State{
		Instances: []*Instance{{Name: "Vanilla"}},
		Accounts:  []*Account{{Id: "id-1", Name: "Steve"}},
	}
	assert.NotNil(t, s.Instance("vanilla"))
	assert.Nil(t, s.Instance("modded"))
	assert.Equal(t, "Steve", s.Account("id-1").Name)
	assert.Equal(t, "id-1", s.Account("steve").Id)
	assert.Nil(t, s.Account("alex"))
}
