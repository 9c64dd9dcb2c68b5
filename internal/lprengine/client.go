// Package lprengine talks to the recognition engine's HTTP API: it posts
// captured frames to /alpr and polls /info/ for the engine's version and
// license key.
package lprengine

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stroemhansen/yolocam/internal/httputil"
	"github.com/stroemhansen/yolocam/internal/reading"
)

// Client wraps the recognition engine's HTTP API.
type Client struct {
	http    httputil.HTTPClient
	baseURL string
	token   string
}

// New builds a Client. baseURL is e.g. "http://127.0.0.1:8100".
func New(client httputil.HTTPClient, baseURL, token string) *Client {
	return &Client{http: client, baseURL: baseURL, token: token}
}

// Info is the engine's /info/ response.
type Info struct {
	Version    string `json:"version"`
	LicenseKey string `json:"license_key"`
}

// Recognize posts one JPEG frame to /alpr and returns the parsed
// reading. regions restricts plate-format matching (e.g. "eu"); config
// and mmc are opaque engine tuning passthroughs from appconfig.LprOptions.
func (c *Client) Recognize(cameraID string, frame []byte, regions, config string, mmc bool) (reading.Reading, error) {
	start := time.Now()
	fields := map[string]string{
		"regions":   regions,
		"camera_id": cameraID,
		"config":    config,
	}
	if mmc {
		fields["mmc"] = "true"
	}
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Token " + c.token
	}

	resp, err := httputil.PostMultipartForm(c.http, c.baseURL+"/alpr", "upload", cameraID+".jpg", frame, fields, headers)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("lprengine: recognize: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("lprengine: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return reading.Reading{}, fmt.Errorf("lprengine: recognize: engine returned %d: %s", resp.StatusCode, string(body))
	}

	var r reading.Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return reading.Reading{}, fmt.Errorf("lprengine: decode response: %w", err)
	}
	r.CameraID = cameraID
	r.ProcessingTime = time.Since(start).Seconds()
	return r, nil
}

// FetchInfo polls the engine's /info/ endpoint.
func (c *Client) FetchInfo() (Info, error) {
	resp, err := c.http.Get(c.baseURL + "/info/")
	if err != nil {
		return Info{}, fmt.Errorf("lprengine: fetch info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("lprengine: fetch info: engine returned %d", resp.StatusCode)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Info{}, fmt.Errorf("lprengine: decode info: %w", err)
	}
	return info, nil
}
