package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"candidate-screening/internal/config"
	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/adapters/httpx"
)

var _ adapter.EmailClient = (*HTTPMailer)(nil)

// HTTPMailer sends mail through a JSON transactional mail API.
type HTTPMailer struct {
	url    string
	apiKey string
	from   string
	http   *http.Client
}

func NewHTTPMailer(cfg config.EmailConfig, hc *http.Client) (*HTTPMailer, error) {
	if cfg.APIURL == "" || cfg.APIKey == "" || cfg.From == "" {
		return nil, domain.ErrMissingCredentials
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPMailer{url: strings.TrimRight(cfg.APIURL, "/"), apiKey: cfg.APIKey, from: cfg.From, http: hc}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *HTTPMailer) Send(ctx context.Context, to, subject, htmlBody string) (adapter.DeliveryResult, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.apiKey)

	var out struct {
		ID string `json:"id"`
	}
	err := httpx.DoJSON(ctx, m.http, "mail", http.MethodPost, m.url+"/emails", header,
		sendRequest{From: m.from, To: []string{to}, Subject: subject, HTML: htmlBody}, &out)
	if err != nil {
		return adapter.DeliveryResult{}, classify(err)
	}
	return adapter.DeliveryResult{MessageID: out.ID}, nil
}

// a rejected API key will not fix itself on retry
func classify(err error) error {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
		return domain.Fatal("send mail", fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err))
	}
	return err
}
