package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"caseflow/internal/types"
)

const (
	notifyAPIBase   = "https://api.notifications.service.gov.uk"
	notifyUserAgent = "caseflow/1.0"

	// API keys end with "<service id>-<secret>", both UUIDs.
	uuidLen = 36
)

// NotifyClientConfig holds the configuration for a NotifyClient.
type NotifyClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// NotifyClient implements NotificationProvider against a GOV.UK Notify
// compatible API. It does not retry in process: retries are rescheduled on
// the queue by the retry coordinator, so a single failed attempt surfaces as
// a *DeliveryError immediately.
type NotifyClient struct {
	base      *BaseClient
	serviceID string
	secret    []byte
	baseURL   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotifyClient parses the API key and builds the client.
func NewNotifyClient(httpClient *http.Client, cfg NotifyClientConfig) (*NotifyClient, error) {
	serviceID, secret, err := parseNotifyKey(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	base := NewBaseClient(httpClient, "notify", RetryPolicy{}, notifyUserAgent)
	return newNotifyClientWithBase(base, serviceID, secret, cfg), nil
}

func newNotifyClientWithBase(base *BaseClient, serviceID, secret string, cfg NotifyClientConfig) *NotifyClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = notifyAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyClient{
		base:      base,
		serviceID: serviceID,
		secret:    []byte(secret),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateNotifyKey reports whether key has the Notify API key shape.
func ValidateNotifyKey(key string) error {
	_, _, err := parseNotifyKey(key)
	return err
}

func parseNotifyKey(key string) (serviceID, secret string, err error) {
	if len(key) < 2*uuidLen+1 {
		return "", "", fmt.Errorf("notify api key is malformed")
	}
	secret = key[len(key)-uuidLen:]
	serviceID = key[len(key)-2*uuidLen-1 : len(key)-uuidLen-1]
	if uuid.Validate(serviceID) != nil || uuid.Validate(secret) != nil {
		return "", "", fmt.Errorf("notify api key does not end in service id and secret")
	}
	return serviceID, secret, nil
}

type notifyPayload struct {
	TemplateID      string            `json:"template_id"`
	EmailAddress    string            `json:"email_address,omitempty"`
	PhoneNumber     string            `json:"phone_number,omitempty"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

type notifyResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

type notifyErrorBody struct {
	StatusCode int `json:"status_code"`
	Errors     []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts the notification. Every failure to get a 2xx is returned as a
// *DeliveryError carrying the HTTP status, or 0 when nothing came back.
func (c *NotifyClient) Send(ctx context.Context, req NotificationRequest) (*DeliveryReceipt, error) {
	payload := notifyPayload{
		TemplateID:      req.TemplateID,
		Personalisation: req.Personalisation,
		Reference:       req.Reference,
	}
	switch req.Channel {
	case ChannelEmail:
		payload.EmailAddress = req.Recipient
	case ChannelSMS:
		payload.PhoneNumber = req.Recipient
	default:
		return nil, types.NewAppError(types.ErrCodeInvalidInvocation,
			fmt.Sprintf("unsupported notification channel %q", req.Channel), nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal notify payload", err)
	}
	token, err := c.token()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to sign notify token", err)
	}

	url := fmt.Sprintf("%s/v2/notifications/%s", c.baseURL, req.Channel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build notify request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.base.Do(httpReq)
	if err != nil {
		return nil, &DeliveryError{
			StatusCode: UpstreamStatus(err),
			Message:    "notify request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := describeNotifyError(raw)
		c.logger.WarnContext(ctx, "notify rejected message",
			"status", resp.StatusCode,
			"template_id", req.TemplateID,
			"reference", req.Reference,
			"error", msg,
		)
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out notifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamNotifyProvider, "failed to decode notify response", err)
	}
	return &DeliveryReceipt{ID: out.ID, Reference: out.Reference, SentAt: c.now().UTC()}, nil
}

func (c *NotifyClient) token() (string, error) {
	claims := jwt.MapClaims{
		"iss": c.serviceID,
		"iat": c.now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func describeNotifyError(raw []byte) string {
	var body notifyErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
		return strings.TrimSpace(string(raw))
	}
	parts := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		parts = append(parts, e.Error+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}
