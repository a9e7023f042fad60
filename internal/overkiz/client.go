package overkiz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sejgit/shadesync/internal/infrastructure/config"
)

// apiPath is the shared path prefix of the enduser API, identical on
// the local gateway and the cloud.
const apiPath = "/enduser-mobile-web/1/enduserAPI/"

// defaultCloudURL is Somfy's production cloud endpoint, used when
// local control is off and no override is configured.
const defaultCloudURL = "https://ha101-1.overkiz.com"

// defaultRequestTimeout caps a single gateway request when the
// configuration leaves the connect timeout unset.
const defaultRequestTimeout = 30 * time.Second

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to one Overkiz gateway.
//
// All requests are serialized through an internal mutex; the gateway
// firmware misbehaves under parallel load. Methods are safe for
// concurrent use, callers just queue.
type Client struct {
	cfg     config.GatewayConfig
	baseURL string
	http    *http.Client

	// reqMu serializes every request to the gateway.
	reqMu sync.Mutex

	// connected tracks whether Connect has succeeded.
	connected bool
	connMu    sync.RWMutex

	// listenerID is the active event listener, empty when none.
	listenerID string
	listenerMu sync.Mutex

	logger Logger
}

// NewClient builds a client from gateway configuration. No network
// traffic happens until Connect.
func NewClient(cfg config.GatewayConfig) *Client {
	transport := &http.Transport{}
	if !cfg.VerifySSL {
		// The local gateway serves a self-signed certificate.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local gateway, developer mode
	}

	timeout := defaultRequestTimeout
	if cfg.ConnectTimeout > 0 {
		timeout = time.Duration(cfg.ConnectTimeout) * time.Second
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL(cfg),
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: noopLogger{},
	}
}

// baseURL selects the local or cloud endpoint.
func baseURL(cfg config.GatewayConfig) string {
	if cfg.LocalControl {
		return fmt.Sprintf("https://gateway-%s.local:8443%s", cfg.PIN, apiPath)
	}
	cloud := cfg.CloudURL
	if cloud == "" {
		cloud = defaultCloudURL
	}
	return strings.TrimSuffix(cloud, "/") + apiPath
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// IsConnected reports whether Connect has succeeded and Disconnect has
// not been called since.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Connect verifies the gateway is reachable and the token valid by
// requesting the API version. It must succeed before any other verb.
func (c *Client) Connect(ctx context.Context) error {
	var version struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := c.do(ctx, http.MethodGet, "apiVersion", nil, &version); err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	return nil
}

// Disconnect tears the session down. An active event listener is
// unregistered best-effort; the gateway expires orphans on its own.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.UnregisterListener(ctx); err != nil {
		c.logger.Warn("unregistering listener on disconnect", "error", err)
	}

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	return nil
}

// ListDevices retrieves the gateway's full device list.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	var devices []Device
	if err := c.do(ctx, http.MethodGet, "setup/devices", nil, &devices); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// ListScenarios retrieves the gateway's action groups.
func (c *Client) ListScenarios(ctx context.Context) ([]ActionGroup, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	var groups []ActionGroup
	if err := c.do(ctx, http.MethodGet, "actionGroups", nil, &groups); err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}
	return groups, nil
}

// ExecuteCommand sends one command to one device and returns the
// gateway's execution ID. An empty ID with a nil error never happens;
// callers treat any error as "command dropped".
func (c *Client) ExecuteCommand(ctx context.Context, deviceURL string, cmd Command) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	req := execRequest{
		// The label shows up in the gateway's execution history;
		// the UUID lets a log line be traced back to one call.
		Label: fmt.Sprintf("shadesync %s %s", cmd.Name, uuid.NewString()[:8]),
		Actions: []Action{
			{DeviceURL: deviceURL, Commands: []Command{cmd}},
		},
	}

	var resp execResponse
	if err := c.do(ctx, http.MethodPost, "exec/apply", req, &resp); err != nil {
		return "", fmt.Errorf("executing %s on %s: %w", cmd.Name, deviceURL, err)
	}
	return resp.ExecID, nil
}

// ExecuteScenario triggers an action group by OID and returns the
// execution ID.
func (c *Client) ExecuteScenario(ctx context.Context, oid string) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	var resp execResponse
	if err := c.do(ctx, http.MethodPost, "exec/"+oid, nil, &resp); err != nil {
		return "", fmt.Errorf("executing scenario %s: %w", oid, err)
	}
	return resp.ExecID, nil
}

// RegisterListener opens a new event listener on the gateway,
// replacing any previous one.
func (c *Client) RegisterListener(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	var resp listenerResponse
	if err := c.do(ctx, http.MethodPost, "events/register", nil, &resp); err != nil {
		return fmt.Errorf("registering listener: %w", err)
	}

	c.listenerMu.Lock()
	c.listenerID = resp.ID
	c.listenerMu.Unlock()
	return nil
}

// FetchEvents drains the active listener's pending events. An empty
// slice is normal. ErrListenerExpired means the gateway dropped the
// listener; register a new one and fetch again.
func (c *Client) FetchEvents(ctx context.Context) ([]Event, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	c.listenerMu.Lock()
	id := c.listenerID
	c.listenerMu.Unlock()
	if id == "" {
		return nil, ErrNoListener
	}

	var events []Event
	if err := c.do(ctx, http.MethodPost, "events/"+id+"/fetch", nil, &events); err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	return events, nil
}

// UnregisterListener closes the active listener. A no-op when none is
// registered.
func (c *Client) UnregisterListener(ctx context.Context) error {
	c.listenerMu.Lock()
	id := c.listenerID
	c.listenerID = ""
	c.listenerMu.Unlock()
	if id == "" {
		return nil
	}

	if err := c.do(ctx, http.MethodPost, "events/"+id+"/unregister", nil, nil); err != nil {
		return fmt.Errorf("unregistering listener: %w", err)
	}
	return nil
}

// HasListener reports whether an event listener is currently
// registered.
func (c *Client) HasListener() bool {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	return c.listenerID != ""
}

// do performs one serialized request against the gateway and decodes
// the JSON response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response onto the client's sentinel
// errors.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)
	detail := apiErr.Error
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	case strings.Contains(detail, "No registered event listener"),
		strings.Contains(apiErr.ErrorCode, "NO_REGISTERED_EVENT_LISTENER"):
		return fmt.Errorf("%w: %s", ErrListenerExpired, detail)
	case strings.Contains(apiErr.ErrorCode, "EXEC_QUEUE_FULL"),
		strings.Contains(detail, "too many executions"):
		return fmt.Errorf("%w: %s", ErrExecutionQueueFull, detail)
	default:
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, detail)
	}
}
