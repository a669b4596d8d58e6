package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"caseflow/internal/types"
)

var _ types.CaseStore = (*CaseStoreClient)(nil)

// CaseStoreClient implements types.CaseStore over the case platform's data
// store API.
type CaseStoreClient struct {
	base         *BaseClient
	baseURL      string
	serviceToken string
}

// NewCaseStoreClient returns a client for the store at baseURL. serviceToken
// is sent as the ServiceAuthorization header when non-empty.
func NewCaseStoreClient(httpClient *http.Client, baseURL, serviceToken string, opts ...BaseClientOption) *CaseStoreClient {
	return &CaseStoreClient{
		base:         NewBaseClient(httpClient, "case-store", DefaultRetryPolicy(), "caseflow/1.0", opts...),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		serviceToken: serviceToken,
	}
}

type caseEventRequest struct {
	EventID types.EventType `json:"event_id"`
	Data    types.CaseData  `json:"data"`
}

func (c *CaseStoreClient) ReadCase(ctx context.Context, caseID int64) (types.CaseData, error) {
	var details types.CaseDetails
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/cases/%d", caseID), nil, &details); err != nil {
		return nil, err
	}
	return details.Data, nil
}

// UpdateCase reads the current data, applies mutator to a copy and submits
// the result as eventType.
func (c *CaseStoreClient) UpdateCase(ctx context.Context, caseID int64, eventType types.EventType, mutator func(types.CaseData)) (types.CaseData, error) {
	current, err := c.ReadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	data := current.Clone()
	if data == nil {
		data = types.CaseData{}
	}
	if mutator != nil {
		mutator(data)
	}

	body, err := json.Marshal(caseEventRequest{EventID: eventType, Data: data})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal case event", err)
	}

	var details types.CaseDetails
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/cases/%d/events", caseID), body, &details); err != nil {
		return nil, err
	}
	return details.Data, nil
}

func (c *CaseStoreClient) call(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build case store request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set("ServiceAuthorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(types.ErrCodeNotFoundCase, "case not found: "+path, nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCaseStore,
			fmt.Sprintf("case store returned %d", resp.StatusCode), nil,
			map[string]any{UpstreamStatusKey: resp.StatusCode, "body": strings.TrimSpace(string(raw))})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCaseStore, "failed to decode case store response", err)
	}
	return nil
}
