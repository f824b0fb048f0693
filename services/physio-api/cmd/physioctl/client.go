package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// apiClient is a thin resty wrapper that turns error envelopes into errors.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &apiClient{http: client}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string) (json.RawMessage, error) {
	var failure apiError
	request := c.http.R().
		SetContext(ctx).
		SetError(&failure).
		SetHeaders(headers)
	if body != nil {
		request.SetBody(body)
	}

	resp, err := request.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if failure.Error.Message != "" {
			return nil, fmt.Errorf("%s %s: %d %s (%s, request %s)", method, path, resp.StatusCode(),
				failure.Error.Message, failure.Error.Type, failure.Error.RequestID)
		}
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode(), resp.String())
	}
	return json.RawMessage(resp.Body()), nil
}

func (c *apiClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, resty.MethodGet, path, nil, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, resty.MethodPost, path, body, nil)
}
