package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/config"
)

type HTTPProcessorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProcessorClient(cfg config.ProcessorConfig) application.ProcessorClient {
	return &HTTPProcessorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPProcessorClient) CreateBuyerIdentity(ctx context.Context, req application.BuyerIdentityRequest, idempotencyKey string) (*application.BuyerIdentityResponse, error) {
	url := fmt.Sprintf("%s/v1/buyers", c.baseURL)
	return sendRequest[application.BuyerIdentityRequest, application.BuyerIdentityResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProcessorClient) CreateTokenizationSession(ctx context.Context, req application.TokenizationRequest) (*application.TokenizationResponse, error) {
	url := fmt.Sprintf("%s/v1/tokenization_sessions", c.baseURL)
	return sendRequest[application.TokenizationRequest, application.TokenizationResponse](c, ctx, http.MethodPost, url, &req, "")
}

func (c *HTTPProcessorClient) CreateTransfer(ctx context.Context, req application.TransferRequest, idempotencyKey string) (*application.TransferResponse, error) {
	url := fmt.Sprintf("%s/v1/transfers", c.baseURL)
	return sendRequest[application.TransferRequest, application.TransferResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProcessorClient) CreateReversal(ctx context.Context, req application.ReversalRequest, idempotencyKey string) (*application.ReversalResponse, error) {
	url := fmt.Sprintf("%s/v1/reversals", c.baseURL)
	return sendRequest[application.ReversalRequest, application.ReversalResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProcessorClient) GetDispute(ctx context.Context, disputeID string) (*application.DisputeResponse, error) {
	url := fmt.Sprintf("%s/v1/disputes/%s", c.baseURL, disputeID)
	return sendRequest[any, application.DisputeResponse](c, ctx, http.MethodGet, url, nil, "")
}

func sendRequest[Req any, Resp any](c *HTTPProcessorClient, ctx context.Context, method, url string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var procErrResp processorErrorResponse
		if err := json.Unmarshal(body, &procErrResp); err != nil {
			return nil, fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &ProcessorError{
			Code:       procErrResp.Err,
			Message:    procErrResp.Message,
			StatusCode: resp.StatusCode,
			AVSResult:  procErrResp.AVSResult,
			CVVResult:  procErrResp.CVVResult,
		}
	}

	var procResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&procResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &procResp, nil
}
