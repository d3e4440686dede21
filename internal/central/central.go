// Package central implements the client side of the central server bridge:
// one-time boot data retrieval and per-login token verification.
package central

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riftlink/relay/internal/logging"
)

// BootMagic is the marker prefix identifying a central server boot response.
const BootMagic = "relay_boot:"

// StatusOKPrefix marks a successful token verification response. The
// remainder after the first colon is the verified display name.
const StatusOKPrefix = "status_ok:"

// maxErrorBody caps how much of an error response body is retained for
// logging and hints.
const maxErrorBody = 512

// BootData is the server-wide configuration fetched once from the central
// server at startup.
type BootData struct {
	Protocol    uint16  `json:"protocol"`
	TPS         uint32  `json:"tps"`
	TokenExpiry uint32  `json:"token_expiry"`
	Maintenance bool    `json:"maintenance"`
	SecretKey   string  `json:"secret_key"`
	SecretKey2  string  `json:"secret_key2"`
	AdminKey    string  `json:"admin_key"`
	ChatBlocked []int32 `json:"chat_blocked"`
}

// RequestError wraps a transport-level failure talking to the central server.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("central request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// CentralError is a non-2xx response from the central server.
type CentralError struct {
	Code int
	Body string
}

func (e *CentralError) Error() string {
	return fmt.Sprintf("central server returned %d: %s", e.Code, e.Body)
}

// InvalidMagicError means the response did not carry the boot magic marker,
// i.e. the URL does not point at a central server.
type InvalidMagicError struct {
	Body string
}

func (e *InvalidMagicError) Error() string {
	return "unexpected response from central server (missing magic marker)"
}

// MalformedDataError means the magic matched but the payload did not decode.
type MalformedDataError struct {
	Err error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed central boot data: %v", e.Err)
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

// ProtocolMismatchError reports disagreeing protocol versions.
type ProtocolMismatchError struct {
	Ours    uint16
	Central uint16
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("protocol mismatch: game server is on v%d, central server on v%d", e.Ours, e.Central)
}

// AuthDeniedError means the central server rejected a login token. The full
// response text is surfaced to the client.
type AuthDeniedError struct {
	Response string
}

func (e *AuthDeniedError) Error() string {
	return fmt.Sprintf("authentication denied: %s", e.Response)
}

// ErrStandalone is returned from verification when no central server is
// configured.
var ErrStandalone = errors.New("no central server configured")

// Bridge talks to the central server. The HTTP client, base URL and shared
// password are fixed at construction; only boot data is mutable and it is
// held by the registry, not here, so no lock is ever taken around a request.
type Bridge struct {
	httpClient *http.Client
	baseURL    string
	password   string
	ours       uint16
	logger     *slog.Logger
}

// New creates a bridge for the given central base URL and shared password.
// A trailing slash is appended to the URL if missing. ours is the relay's
// protocol version, checked against the boot data.
func New(baseURL, password string, ours uint16, logger *slog.Logger) *Bridge {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Bridge{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		password:   password,
		ours:       ours,
		logger:     logger.With(slog.String(logging.KeyComponent, "central")),
	}
}

// Standalone reports whether no central server is configured. In standalone
// mode authentication is disabled entirely.
func (b *Bridge) Standalone() bool {
	return b.baseURL == ""
}

// RequestBootData fetches the server-wide configuration. Failures classify
// as *RequestError, *CentralError, *InvalidMagicError, *MalformedDataError
// or *ProtocolMismatchError.
func (b *Bridge) RequestBootData(ctx context.Context) (*BootData, error) {
	endpoint := b.baseURL + "gs/boot?pw=" + url.QueryEscape(b.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CentralError{Code: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	text := string(body)
	if !strings.HasPrefix(text, BootMagic) {
		return nil, &InvalidMagicError{Body: truncate(text, maxErrorBody)}
	}

	var data BootData
	if err := json.Unmarshal([]byte(text[len(BootMagic):]), &data); err != nil {
		return nil, &MalformedDataError{Err: err}
	}

	if data.Protocol != b.ours {
		return nil, &ProtocolMismatchError{Ours: b.ours, Central: data.Protocol}
	}

	return &data, nil
}

// VerifyToken checks an (account id, token) pair against the central server.
// On success it returns the verified display name. A rejection returns
// *AuthDeniedError carrying the central server's full response text; any
// transport failure returns *RequestError.
func (b *Bridge) VerifyToken(ctx context.Context, accountID int32, token string) (string, error) {
	if b.Standalone() {
		return "", ErrStandalone
	}

	q := url.Values{}
	q.Set("account_id", strconv.FormatInt(int64(accountID), 10))
	q.Set("token", token)
	q.Set("pw", b.password)

	endpoint := b.baseURL + "gs/verify?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", &RequestError{Err: err}
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &RequestError{Err: err}
	}

	text := string(body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &CentralError{Code: resp.StatusCode, Body: truncate(text, maxErrorBody)}
	}

	if !strings.HasPrefix(text, StatusOKPrefix) {
		return "", &AuthDeniedError{Response: text}
	}

	name := text[len(StatusOKPrefix):]
	b.logger.Debug("token verified", slog.Int(logging.KeyAccountID, int(accountID)))
	return name, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
