package tms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"candidate-screening/internal/config"
	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/adapters/httpx"
)

const service = "tms"

var _ adapter.TMSClient = (*Client)(nil)

// Client talks to the talent management system's REST API.
type Client struct {
	base string
	http *http.Client
}

// NewClient authenticates with OAuth2 client credentials when a token URL is configured.
func NewClient(ctx context.Context, cfg config.TMSConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domain.ErrMissingCredentials
	}
	hc := &http.Client{}
	if cfg.TokenURL != "" {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, domain.ErrMissingCredentials
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		hc = cc.Client(ctx)
	}
	return NewClientWithHTTP(cfg.BaseURL, hc), nil
}

func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

type applicationDTO struct {
	ID             string    `json:"id"`
	CandidateName  string    `json:"candidate_name"`
	CandidateEmail string    `json:"candidate_email"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type documentDTO struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

func (c *Client) FetchNewApplications(ctx context.Context, requisitionExternalID string, lookback time.Duration) ([]adapter.ApplicationRecord, error) {
	since := time.Now().UTC().Add(-lookback).Format(time.RFC3339)
	u := fmt.Sprintf("%s/requisitions/%s/applications?submitted_after=%s",
		c.base, url.PathEscape(requisitionExternalID), url.QueryEscape(since))

	var page struct {
		Applications []applicationDTO `json:"applications"`
	}
	if err := httpx.DoJSON(ctx, c.http, service, http.MethodGet, u, nil, nil, &page); err != nil {
		return nil, classify("fetch applications", err)
	}
	out := make([]adapter.ApplicationRecord, 0, len(page.Applications))
	for _, a := range page.Applications {
		out = append(out, adapter.ApplicationRecord{
			ExternalID:     a.ID,
			CandidateName:  a.CandidateName,
			CandidateEmail: a.CandidateEmail,
			SubmittedAt:    a.SubmittedAt,
		})
	}
	return out, nil
}

func (c *Client) FetchResume(ctx context.Context, applicationExternalID string) ([]byte, error) {
	u := fmt.Sprintf("%s/applications/%s/resume", c.base, url.PathEscape(applicationExternalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.Permanent("fetch resume", err)
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := httpx.Do(c.http, service, req)
	if err != nil {
		return nil, classify("fetch resume", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient("fetch resume", err)
	}
	return b, nil
}

func (c *Client) FindDocument(ctx context.Context, applicationExternalID, filename string) (string, bool, error) {
	u := fmt.Sprintf("%s/applications/%s/documents?filename=%s",
		c.base, url.PathEscape(applicationExternalID), url.QueryEscape(filename))
	var page struct {
		Documents []documentDTO `json:"documents"`
	}
	if err := httpx.DoJSON(ctx, c.http, service, http.MethodGet, u, nil, nil, &page); err != nil {
		return "", false, classify("find document", err)
	}
	for _, d := range page.Documents {
		if d.Filename == filename {
			return d.ID, true, nil
		}
	}
	return "", false, nil
}

func (c *Client) UploadDocument(ctx context.Context, applicationExternalID string, content []byte, filename string) (string, error) {
	u := fmt.Sprintf("%s/applications/%s/documents", c.base, url.PathEscape(applicationExternalID))
	body := struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		Content     string `json:"content"`
	}{
		Filename:    filename,
		ContentType: http.DetectContentType(content),
		Content:     base64.StdEncoding.EncodeToString(content),
	}
	var created documentDTO
	if err := httpx.DoJSON(ctx, c.http, service, http.MethodPost, u, nil, body, &created); err != nil {
		return "", classify("upload document", err)
	}
	if created.ID == "" {
		return "", domain.Permanent("upload document", errors.New("tms returned no document id"))
	}
	return created.ID, nil
}

// rejected credentials are a configuration problem, not a property of the job
func classify(op string, err error) error {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
		return domain.Fatal(op, fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err))
	}
	var oauthErr *oauth2.RetrieveError
	if errors.As(err, &oauthErr) && oauthErr.Response != nil && oauthErr.Response.StatusCode < 500 {
		return domain.Fatal(op, fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err))
	}
	return err
}
