package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes acota lo que se lee de una respuesta upstream.
	maxBodyBytes = 1 << 20
)

// Client es el cliente JSON que comparten los adapters que hablan con
// servicios externos (subsistemas de origen, pasarela de pagos).
// Los headers fijos (api key, authorization) se configuran una vez con
// SetDefaultHeader en vez de pasarse en cada request.
type Client struct {
	http     *http.Client
	baseURL  string
	defaults http.Header
}

// New crea un Client sin base URL; DoJSON solo acepta URLs absolutas.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		defaults: http.Header{},
	}
}

// NewWithBaseURL valida y fija la base contra la que se resuelven los
// paths relativos.
func NewWithBaseURL(baseURL string, timeout time.Duration) (*Client, error) {
	c := New(timeout)
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return c, nil
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c, nil
}

// SetDefaultHeader fija un header que viaja en todos los requests del
// cliente. Pisa el valor anterior de la misma clave.
func (c *Client) SetDefaultHeader(key, value string) {
	if c == nil || strings.TrimSpace(key) == "" {
		return
	}
	c.defaults.Set(key, value)
}

// BaseURL devuelve la base configurada, o "" si no hay.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// DoJSON hace un request JSON.
// - pathOrURL: URL absoluta, o path relativo si hay base URL
// - in: body a enviar (nil => sin body)
// - out: destino del decode (nil => se descarta la respuesta)
// Status fuera de 2xx devuelve *HTTPError.
func (c *Client) DoJSON(ctx context.Context, method, pathOrURL string, in, out any) error {
	if c == nil || c.http == nil {
		return errors.New("httpclient: nil client")
	}

	fullURL, err := c.resolveURL(pathOrURL)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.defaults {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}

func (c *Client) resolveURL(pathOrURL string) (string, error) {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if pathOrURL == "" {
		return "", errors.New("httpclient: empty url")
	}
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL, nil
	}
	if c.baseURL == "" {
		return "", errors.New("httpclient: relative path requires base url")
	}
	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return c.baseURL + pathOrURL, nil
}
