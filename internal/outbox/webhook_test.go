package outbox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestAuthHeaderNoQop(t *testing.T) {
	challenge := `Digest realm="camera", nonce="abc123"`
	header, err := digestAuthHeader(challenge, "POST", "/hook", "user", "pass")
	require.NoError(t, err)

	ha1 := md5Hex("user:camera:pass")
	ha2 := md5Hex("POST:/hook")
	wantResponse := md5Hex(ha1 + ":abc123:" + ha2)

	require.Contains(t, header, `realm="camera"`)
	require.Contains(t, header, `nonce="abc123"`)
	require.Contains(t, header, fmt.Sprintf(`response="%s"`, wantResponse))
	require.NotContains(t, header, "qop=")
}

func TestDigestAuthHeaderWithQopAuth(t *testing.T) {
	challenge := `Digest realm="camera", nonce="abc123", qop="auth"`
	header, err := digestAuthHeader(challenge, "POST", "/hook", "user", "pass")
	require.NoError(t, err)

	ha1 := md5Hex("user:camera:pass")
	ha2 := md5Hex("POST:/hook")
	wantResponse := md5Hex(ha1 + ":abc123:00000001:0a4f113b:auth:" + ha2)

	require.Contains(t, header, "qop=auth")
	require.Contains(t, header, `nc=00000001`)
	require.Contains(t, header, fmt.Sprintf(`response="%s"`, wantResponse))
}

func TestDigestAuthHeaderMissingNonceErrors(t *testing.T) {
	_, err := digestAuthHeader(`Digest realm="camera"`, "POST", "/hook", "user", "pass")
	require.Error(t, err)
}
