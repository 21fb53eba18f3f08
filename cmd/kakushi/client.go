package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/models"
)

// apiClient talks to a running kakushi server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

// do sends body as JSON and decodes the response into out when the status is want.
func (c *apiClient) do(method, path string, body, out interface{}, want int) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// batchResponse is the body of a job created with wait=true.
type batchResponse struct {
	Job *jobs.Job `json:"job"`
	*models.BatchResult
}

func (c *apiClient) runBatch(req batchRequest) (*batchResponse, error) {
	var out batchResponse
	if err := c.do(http.MethodPost, "/api/v1/jobs?wait=true", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.BatchResult == nil {
		out.BatchResult = models.NewBatchResult()
	}
	return &out, nil
}

func (c *apiClient) job(id string) (*jobs.Job, error) {
	var job jobs.Job
	if err := c.do(http.MethodGet, "/api/v1/jobs/"+id, nil, &job, http.StatusOK); err != nil {
		return nil, err
	}
	return &job, nil
}
