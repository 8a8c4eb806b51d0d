package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aurovest/keydesk/pkg/models"
)

// Sentinel errors for platform client failures.
var (
	ErrUnreachable = errors.New("platform unreachable")
	ErrTimeout     = errors.New("platform request timeout")
	// ErrRejected signals an application-level failure ({"success":false})
	// or a non-2xx response. The platform message, when present, is wrapped in.
	ErrRejected = errors.New("platform rejected request")
)

// Client is the interface for the remote platform service that owns keys,
// plans, and accounts. KeyDesk never mutates this state except through here.
type Client interface {
	GenerateKeys(ctx context.Context, planID string, quantity int) error
	ListKeys(ctx context.Context, params ListKeysParams) ([]models.AuthKey, error)
	KeyStats(ctx context.Context, planID string) (*models.InventoryStats, error)
	DistributeToAccount(ctx context.Context, keyID, accountID string) error
	DistributeToEmail(ctx context.Context, keyID, email string) error
	ListAccounts(ctx context.Context, search string, limit int) ([]models.Account, error)
	Ready(ctx context.Context) error
}

// ListKeysParams defines filters for the admin key listing.
type ListKeysParams struct {
	Page   int
	Limit  int
	PlanID string
	Status string
}

// HTTPClient implements Client against the platform's admin HTTP API.
type HTTPClient struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

// NewHTTPClient creates a new platform HTTP client.
func NewHTTPClient(baseURL, serviceToken string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GenerateKeys(ctx context.Context, planID string, quantity int) error {
	body := map[string]any{"plan_id": planID, "quantity": quantity}
	raw, err := c.do(ctx, http.MethodPost, "/admin/auth-keys/generate", nil, body)
	if err != nil {
		return err
	}
	return checkAck(raw)
}

func (c *HTTPClient) ListKeys(ctx context.Context, params ListKeysParams) ([]models.AuthKey, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.PlanID != "" {
		q.Set("plan_id", params.PlanID)
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}

	raw, err := c.do(ctx, http.MethodGet, "/admin/auth-keys", q, nil)
	if err != nil {
		return nil, err
	}

	items := normalizeList(raw)
	keys := make([]models.AuthKey, 0, len(items))
	for _, item := range items {
		var k models.AuthKey
		if err := json.Unmarshal(item, &k); err != nil {
			// Skip records the client does not understand instead of
			// failing the whole listing.
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *HTTPClient) KeyStats(ctx context.Context, planID string) (*models.InventoryStats, error) {
	q := url.Values{}
	if planID != "" {
		q.Set("plan_id", planID)
	}

	raw, err := c.do(ctx, http.MethodGet, "/admin/auth-keys/stats", q, nil)
	if err != nil {
		return nil, err
	}

	var env struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding stats response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, rejected(env.Message)
	}

	payload := raw
	if len(env.Data) > 0 {
		payload = env.Data
	}

	var stats models.InventoryStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decoding stats payload: %w", err)
	}
	return &stats, nil
}

func (c *HTTPClient) DistributeToAccount(ctx context.Context, keyID, accountID string) error {
	body := map[string]any{"account_id": accountID}
	path := fmt.Sprintf("/admin/auth-keys/%s/distribute", url.PathEscape(keyID))
	raw, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return checkAck(raw)
}

func (c *HTTPClient) DistributeToEmail(ctx context.Context, keyID, email string) error {
	body := map[string]any{"email": email}
	path := fmt.Sprintf("/admin/auth-keys/%s/distribute-email", url.PathEscape(keyID))
	raw, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return checkAck(raw)
}

func (c *HTTPClient) ListAccounts(ctx context.Context, search string, limit int) ([]models.Account, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	raw, err := c.do(ctx, http.MethodGet, "/admin/users", q, nil)
	if err != nil {
		return nil, err
	}

	items := normalizeList(raw)
	accounts := make([]models.Account, 0, len(items))
	for _, item := range items {
		var a models.Account
		if err := json.Unmarshal(item, &a); err != nil {
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: platform not ready (status %d)", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// do issues one request and returns the raw response body. Transport errors
// are classified to sentinels; non-2xx statuses become ErrRejected with the
// platform message when the body carries one.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}
	raw := buf.Bytes()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := ackMessage(raw); msg != "" {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrRejected, msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return raw, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	req.Header.Set("Accept", "application/json")
}

// checkAck inspects a mutation acknowledgement. The platform can report
// application failure with a 200 status and {"success":false,"message":…}.
func checkAck(raw []byte) error {
	var ack struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		// An empty or non-JSON 2xx body is still an acknowledgement.
		return nil
	}
	if ack.Success != nil && !*ack.Success {
		return rejected(ack.Message)
	}
	return nil
}

func ackMessage(raw []byte) string {
	var ack struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return ""
	}
	return ack.Message
}

func rejected(message string) error {
	if message == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, message)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
