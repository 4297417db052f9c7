package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/smallbiznis/zapflow/internal/config"
	obstracing "github.com/smallbiznis/zapflow/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultBridgeTimeout = 10 * time.Second

type ClientParam struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// BridgeClient is the HTTP implementation of Gateway against the session
// bridge service.
type BridgeClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewBridgeClient(p ClientParam) Gateway {
	timeout := defaultBridgeTimeout
	if p.Cfg.SessionBridgeTimeout > 0 {
		timeout = time.Duration(p.Cfg.SessionBridgeTimeout) * time.Second
	}
	return &BridgeClient{
		baseURL:   p.Cfg.SessionBridgeURL,
		authToken: p.Cfg.SessionBridgeToken,
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: timeout,
		}),
		log: p.Log.Named("session.bridge"),
	}
}

type statusResponse struct {
	Connected bool `json:"connected"`
}

func (c *BridgeClient) IsConnected(ctx context.Context, tenantID int64) (bool, error) {
	url := fmt.Sprintf("%s/sessions/%s/status", c.baseURL, strconv.FormatInt(tenantID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("session status returned %s", resp.Status)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, err
	}
	return status.Connected, nil
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type sendResponse struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

func (c *BridgeClient) SendText(ctx context.Context, tenantID int64, recipientAddress, text string) error {
	payload, err := json.Marshal(sendRequest{Recipient: recipientAddress, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/sessions/%s/messages", c.baseURL, strconv.FormatInt(tenantID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ErrSessionNotConnected
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: bridge returned %s", ErrSendFailed, resp.Status)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.Sent {
		return fmt.Errorf("%w: %s", ErrSendFailed, result.Error)
	}
	return nil
}

func (c *BridgeClient) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
