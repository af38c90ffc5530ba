package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStoreWith(keyring.NewArrayKeyring(nil))

	require.NoError(t, s.Set(OpenAIKey, "sk-test"))
	got, err := s.Get(OpenAIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	require.NoError(t, s.Delete(OpenAIKey))
	_, err = s.Get(OpenAIKey)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestStore_SetRejects(t *testing.T) {
	s := NewStoreWith(keyring.NewArrayKeyring(nil))

	assert.Error(t, s.Set("github-token", "x"))
	assert.Error(t, s.Set(MailboxPassword, ""))
}

func TestStore_ResolvePrefersEnv(t *testing.T) {
	s := NewStoreWith(keyring.NewArrayKeyring([]keyring.Item{
		{Key: AnthropicKey, Data: []byte("from-keyring")},
	}))

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	got, err := s.Resolve("ANTHROPIC_API_KEY", AnthropicKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	t.Setenv("ANTHROPIC_API_KEY", "")
	got, err = s.Resolve("ANTHROPIC_API_KEY", AnthropicKey)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", got)
}

func TestStore_ResolveMissing(t *testing.T) {
	t.Setenv("EMAIL_PASS", "")

	got, err := NewStoreWith(keyring.NewArrayKeyring(nil)).Resolve("EMAIL_PASS", MailboxPassword)
	require.NoError(t, err)
	assert.Empty(t, got)

	unavailable := &Store{open: func() (keyring.Keyring, error) { return nil, errors.New("no backend") }}
	got, err = unavailable.Resolve("EMAIL_PASS", MailboxPassword)
	require.NoError(t, err)
	assert.Empty(t, got)
}
