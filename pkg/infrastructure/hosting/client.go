package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
)

// Client talks to the static-hosting/DNS provider. Only the contract the
// orchestrator needs is covered: alias repoint, domain verification and
// certificate status polling. Every call is bounded by the shared client
// timeout so synchronous handlers never hang on the provider.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RepointResult reports whether the alias now serves the target endpoint
// or the provider is still materializing the deployment behind it.
type RepointResult struct {
	Domain  string `json:"domain"`
	Pending bool   `json:"pending"`
}

// RepointAlias points the given domain at the version's deployed endpoint.
// When the endpoint is already materialized this is a near-instant alias
// update; otherwise the provider answers 202 and the result is pending.
func (c *Client) RepointAlias(ctx context.Context, domain string, endpointURL string) (RepointResult, error) {
	payload := map[string]string{"domain": domain, "endpoint": endpointURL}
	status, body, err := c.post(ctx, "/v1/aliases", payload)
	if err != nil {
		return RepointResult{}, entities.NewDependencyError("hosting alias repoint failed", err)
	}
	switch status {
	case http.StatusOK:
		return RepointResult{Domain: domain}, nil
	case http.StatusAccepted:
		return RepointResult{Domain: domain, Pending: true}, nil
	default:
		return RepointResult{}, entities.NewDependencyError(
			fmt.Sprintf("hosting alias repoint for %s returned %d", domain, status),
			fmt.Errorf("%s", body))
	}
}

// VerifyDomain asks the provider to confirm DNS ownership of the domain.
func (c *Client) VerifyDomain(ctx context.Context, domain string) (bool, error) {
	status, body, err := c.post(ctx, "/v1/domains/verify", map[string]string{"domain": domain})
	if err != nil {
		return false, entities.NewDependencyError("domain verification failed", err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return false, nil
	default:
		return false, entities.NewDependencyError(
			fmt.Sprintf("domain verification for %s returned %d", domain, status),
			fmt.Errorf("%s", body))
	}
}

// CertStatus polls the certificate provisioning state for a domain.
func (c *Client) CertStatus(ctx context.Context, domain string) (entities.SSLStatus, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/domains/"+domain+"/certificate", nil)
	if err != nil {
		return entities.SSLStatusPending, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return entities.SSLStatusPending, "", entities.NewDependencyError("certificate status poll failed", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return entities.SSLStatusPending, "", entities.NewDependencyError("decoding certificate status", err)
	}
	switch out.Status {
	case "active":
		return entities.SSLStatusActive, "", nil
	case "failed":
		return entities.SSLStatusFailed, out.Error, nil
	default:
		return entities.SSLStatusPending, out.Error, nil
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(respBody), nil
}
