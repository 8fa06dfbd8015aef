package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/ssh"
)

func TestGenerateED25519KeyPair(t *testing.T) {
	kp, err := GenerateED25519KeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)

	// Private key must parse back into a usable signer.
	signer, err := ssh.ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)

	// Public key must be in authorized_keys format and match the signer.
	pub, _, _, _, err := ssh.ParseAuthorizedKey(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey().Type(), pub.Type())
	assert.True(t, strings.HasPrefix(string(kp.PublicKey), "ssh-ed25519 "))
}

func TestGenerateED25519KeyPair_Unique(t *testing.T) {
	a, err := GenerateED25519KeyPair()
	require.NoError(t, err)
	b, err := GenerateED25519KeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
