// Package twilio is a minimal Twilio REST client covering outbound
// calls and call recordings.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dialer-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.twilio.com"
	apiVersion     = "2010-04-01"

	// Provider rejection codes that are terminal regardless of retries.
	codeInvalidNumber    = 21211
	codeUnverifiedNumber = 21214
)

// Client performs call and recording operations against the Twilio
// REST API.
type Client interface {
	PlaceCall(ctx context.Context, to, from, callbackURL string) (string, error)
	ListRecordings(ctx context.Context, callSID string) ([]Recording, error)
	DownloadRecording(ctx context.Context, rec Recording, dir string) (string, error)
}

// Recording is one recorded call segment as reported by the provider.
type Recording struct {
	SID      string `json:"sid"`
	CallSID  string `json:"call_sid"`
	URI      string `json:"uri"`
	Duration string `json:"duration"`
}

// RestError is the provider's structured error body.
type RestError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *RestError) Error() string {
	return fmt.Sprintf("twilio: error %d (status %d): %s", e.Code, e.Status, e.Message)
}

// IsInvalidNumber reports whether err is the provider's malformed
// destination rejection.
func IsInvalidNumber(err error) bool {
	return resilience.PermanentReason(err) == "invalid_number"
}

// IsUnverified reports whether err is the provider's unverified
// destination rejection (restricted trial accounts).
func IsUnverified(err error) bool {
	return resilience.PermanentReason(err) == "unverified"
}

// Option configures the client.
type Option func(*restClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *restClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *restClient) {
		c.http = hc
	}
}

type restClient struct {
	accountSID string
	authToken  string
	baseURL    string
	http       *http.Client
}

// NewClient creates a Twilio REST client for the given account.
func NewClient(accountSID, authToken string, opts ...Option) Client {
	c := &restClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *restClient) accountURL(resource string) string {
	return fmt.Sprintf("%s/%s/Accounts/%s/%s", c.baseURL, apiVersion, c.accountSID, resource)
}

// PlaceCall requests an outbound call from `from` to `to`. The provider
// fetches call instructions from callbackURL once the call connects.
// Returns the opaque call SID on success.
func (c *restClient) PlaceCall(ctx context.Context, to, from, callbackURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Url", callbackURL)
	form.Set("Method", http.MethodPost)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountURL("Calls.json"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "twilio: create call request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "twilio: place call")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "twilio: read call response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classifyError(resp.StatusCode, body)
	}

	var call struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &call); err != nil {
		return "", eris.Wrap(err, "twilio: unmarshal call response")
	}
	if call.SID == "" {
		return "", eris.New("twilio: call response missing sid")
	}
	return call.SID, nil
}

// ListRecordings returns the recordings the provider has registered for
// the given call SID. An empty list is not an error: the recording may
// simply not be ready yet.
func (c *restClient) ListRecordings(ctx context.Context, callSID string) ([]Recording, error) {
	u := c.accountURL("Recordings.json") + "?CallSid=" + url.QueryEscape(callSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "twilio: create recordings request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "twilio: list recordings")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "twilio: read recordings response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp.StatusCode, body)
	}

	var list struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, eris.Wrap(err, "twilio: unmarshal recordings response")
	}
	return list.Recordings, nil
}

// DownloadRecording fetches the recording's media to dir and returns
// the local file path. The provider serves media at the recording URI
// with the .json suffix swapped for an audio extension.
func (c *restClient) DownloadRecording(ctx context.Context, rec Recording, dir string) (string, error) {
	mediaURL := c.baseURL + strings.Replace(rec.URI, ".json", ".mp3", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "twilio: create media request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "twilio: fetch media")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", classifyError(resp.StatusCode, body)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "twilio: create download dir")
	}

	path := filepath.Join(dir, "recording_"+rec.SID+".mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "twilio: create media file")
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", eris.Wrap(err, "twilio: write media file")
	}
	return path, nil
}

// classifyError maps a non-2xx provider response onto the resilience
// taxonomy: known rejection codes become permanent, retriable statuses
// become transient, and everything else surfaces as a plain RestError.
func classifyError(statusCode int, body []byte) error {
	restErr := &RestError{Status: statusCode}
	if err := json.Unmarshal(body, restErr); err != nil {
		restErr.Message = strings.TrimSpace(string(body))
	}
	if restErr.Status == 0 {
		restErr.Status = statusCode
	}

	switch restErr.Code {
	case codeInvalidNumber:
		return resilience.NewPermanentError(restErr, "invalid_number")
	case codeUnverifiedNumber:
		return resilience.NewPermanentError(restErr, "unverified")
	}

	if resilience.IsTransientHTTPStatus(statusCode) {
		return resilience.NewTransientError(restErr, statusCode)
	}
	return restErr
}
