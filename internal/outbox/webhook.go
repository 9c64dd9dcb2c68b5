package outbox

import (
	"bytes"
	"crypto/md5"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/httputil"
)

// WebhookSink posts the decision's JSON body to a configured URL. TLS
// verification is disabled to match appliances pointed at self-signed
// reverse proxies in the field, per the spec's documented behavior.
type WebhookSink struct {
	client httputil.HTTPClient
	iface  appconfig.DeviceInterface
	retry  *retryPolicy
}

// NewWebhookSink builds a WebhookSink posting to iface.URL with
// iface.Authentication applied.
func NewWebhookSink(iface appconfig.DeviceInterface) *WebhookSink {
	transport := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	client := httputil.NewStandardClient(&http.Client{Transport: transport, Timeout: 10 * time.Second})
	return &WebhookSink{client: client, iface: iface, retry: newRetryPolicy(2*time.Second, 60*time.Second)}
}

func (s *WebhookSink) Serialize(d *decision.Decision) ([]byte, error) { return json.Marshal(d) }
func (s *WebhookSink) FileExtension() string                         { return ".yop" }
func (s *WebhookSink) SettleAge() time.Duration                       { return 0 }
func (s *WebhookSink) RetryDelayHint(success bool) time.Duration      { return s.retry.hint(success) }

func (s *WebhookSink) Send(data []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.iface.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	switch s.iface.Authentication {
	case appconfig.Basic, appconfig.Proxy:
		req.SetBasicAuth(s.iface.Username, s.iface.Password)
	case appconfig.Digest:
		// Digest requires the server's challenge; probe once, then
		// retry with the computed response header.
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("outbox: webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && s.iface.Authentication == appconfig.Digest {
		challenge := resp.Header.Get("WWW-Authenticate")
		header, err := digestAuthHeader(challenge, http.MethodPost, s.iface.URL, s.iface.Username, s.iface.Password)
		if err != nil {
			return fmt.Errorf("outbox: webhook digest challenge: %w", err)
		}
		req2, err := http.NewRequest(http.MethodPost, s.iface.URL, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req2.Header.Set("Content-Type", "application/json")
		req2.Header.Set("Authorization", header)
		resp2, err := s.client.Do(req2)
		if err != nil {
			return fmt.Errorf("outbox: webhook digest retry: %w", err)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("outbox: webhook digest retry: status %d", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("outbox: webhook post: status %d", resp.StatusCode)
	}
	return nil
}

// digestAuthHeader computes an RFC 2617 digest Authorization header
// from a WWW-Authenticate challenge. qop=auth is assumed when present;
// nc is always "00000001" since each spooled post uses a fresh nonce
// round-trip rather than a reused connection.
func digestAuthHeader(challenge, method, rawURL, username, password string) (string, error) {
	params := parseDigestChallenge(challenge)
	realm, nonce := params["realm"], params["nonce"]
	if nonce == "" {
		return "", fmt.Errorf("missing nonce in challenge")
	}
	uri := rawURL
	ha1 := md5Hex(username + ":" + realm + ":" + password)
	ha2 := md5Hex(method + ":" + uri)

	qop := params["qop"]
	if qop == "" {
		response := md5Hex(ha1 + ":" + nonce + ":" + ha2)
		return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
			username, realm, nonce, uri, response), nil
	}

	const nc = "00000001"
	const cnonce = "0a4f113b"
	response := md5Hex(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2)
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", qop=auth, nc=%s, cnonce="%s", response="%s"`,
		username, realm, nonce, uri, nc, cnonce, response), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func parseDigestChallenge(header string) map[string]string {
	out := map[string]string{}
	header = strings.TrimPrefix(header, "Digest ")
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return out
}
