// Package recon implements the enumeration phases: candidate generation,
// certificate-transparency lookups, DNS resolution, zone transfers and HTTP
// validation.
package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	crtshURLTemplate = "https://crt.sh/?q=%%25.%s&output=json"
	crtshTimeout     = 10 * time.Second
	crtshMaxBody     = 50 * 1024 * 1024 // 50MB
)

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

// CrtshClient queries crt.sh certificate-transparency logs.
type CrtshClient struct {
	// URLTemplate has one %s verb for the domain. Defaults to crt.sh.
	URLTemplate string
	UserAgent   string
	Client      *http.Client
	Log         logrus.FieldLogger
}

// NewCrtshClient returns a client for the public crt.sh endpoint.
func NewCrtshClient(userAgent string, log logrus.FieldLogger) *CrtshClient {
	return &CrtshClient{
		URLTemplate: crtshURLTemplate,
		UserAgent:   userAgent,
		Client:      &http.Client{Timeout: crtshTimeout},
		Log:         log,
	}
}

// Subdomains returns the names crt.sh has logged under domain: lower-case,
// wildcard prefix removed, deduplicated in first-seen order. Names are kept
// when they end with domain, so "notexample.com" passes for "example.com".
// Any failure yields an empty result.
func (c *CrtshClient) Subdomains(ctx context.Context, domain string) []string {
	tmpl := c.URLTemplate
	if tmpl == "" {
		tmpl = crtshURLTemplate
	}
	url := fmt.Sprintf(tmpl, domain)

	body, err := c.fetch(ctx, url)
	if err != nil {
		c.debug(domain, err)
		return nil
	}

	hosts, err := parseCrtshResponse(body, domain)
	if err != nil {
		c.debug(domain, err)
		return nil
	}
	return hosts
}

func (c *CrtshClient) debug(domain string, err error) {
	if c.Log == nil {
		return
	}
	c.Log.WithFields(logrus.Fields{"source": "crt.sh", "domain": domain}).WithError(err).Debug("passive lookup failed")
}

func parseCrtshResponse(body []byte, domain string) ([]string, error) {
	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("crt.sh JSON parse: %w", err)
	}

	seen := make(map[string]bool)
	var hosts []string

	for _, entry := range entries {
		// name_value can contain multiple names separated by newlines.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.TrimSpace(strings.ToLower(name))
			name = strings.TrimPrefix(name, "*.")
			if name == "" || !strings.HasSuffix(name, domain) {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hosts = append(hosts, name)
			}
		}
	}

	return hosts, nil
}

func (c *CrtshClient) fetch(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, crtshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crt.sh returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, crtshMaxBody))
	if err != nil {
		return nil, fmt.Errorf("crt.sh read body: %w", err)
	}
	return body, nil
}
