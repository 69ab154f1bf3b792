package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
)

const maxErrorBodyBytes = 1 << 10

// StatusError is returned when the push server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("push server returned status: %d", e.StatusCode)
}

// BarkTransport sends notifications through a Bark server:
// GET {server}/{key}/{title}/{body}?group=..&isArchive=1&sound=..
type BarkTransport struct {
	client    *http.Client
	server    string
	group     string
	sound     string
	archive   bool
	userAgent string
}

func NewBarkTransport(cfg config.PushConfig) (*BarkTransport, error) {
	server := cfg.Server
	if server == "" {
		server = constants.DefaultPushServer
	}
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid push server %q", server)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = constants.DefaultUserAgent
	}

	return &BarkTransport{
		client: &http.Client{
			Timeout: timeout,
		},
		server:    strings.TrimRight(server, "/"),
		group:     cfg.Group,
		sound:     cfg.Sound,
		archive:   cfg.Archive,
		userAgent: userAgent,
	}, nil
}

func (t *BarkTransport) Send(ctx context.Context, target string, n Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.buildURL(target, n), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		// *url.Error embeds the request URL, which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	return nil
}

func (t *BarkTransport) buildURL(target string, n Notification) string {
	q := url.Values{}
	if t.group != "" {
		q.Set("group", t.group)
	}
	if t.archive {
		q.Set("isArchive", "1")
	}
	if t.sound != "" {
		q.Set("sound", t.sound)
	}

	var b strings.Builder
	b.WriteString(t.server)
	for _, seg := range []string{target, n.Title, n.Body} {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	if len(q) > 0 {
		b.WriteByte('?')
		b.WriteString(q.Encode())
	}
	return b.String()
}
