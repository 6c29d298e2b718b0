// Package bot is a minimal client for the Telegram-style bot gateway used as
// an ingestion source: long-poll getUpdates, getFile, file download and
// sendMessage. Raw updates are resolved once into a Payload (see Parse).
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUnauthorized is returned when the gateway rejects the bot token.
	ErrUnauthorized = errors.New("bot: unauthorized")

	// ErrTransport wraps network failures, non-2xx responses and ok=false replies.
	ErrTransport = errors.New("bot: transport failure")
)

// DefaultBaseURL is the public gateway.
const DefaultBaseURL = "https://api.telegram.org"

// Client calls the gateway with a fixed bot token. It is safe for
// concurrent use.
type Client struct {
	http  *resty.Client
	token string
}

// New returns a client. timeout bounds each HTTP call and must exceed the
// long-poll window passed to GetUpdates.
func New(baseURL, token string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	hc := &http.Client{Timeout: timeout}
	return &Client{
		http:  resty.NewWithClient(hc).SetBaseURL(strings.TrimRight(baseURL, "/")),
		token: token,
	}
}

// HTTPClient exposes the underlying client so tests can mock the transport.
func (c *Client) HTTPClient() *http.Client { return c.http.GetClient() }

// GetUpdates long-polls for message updates with update_id >= offset. The
// server holds the request for up to timeout when nothing is pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}
	var out envelope[[]Update]
	if err := c.call(ctx, "getUpdates", body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// GetFile resolves a file id to a short-lived download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var out envelope[File]
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &out); err != nil {
		return nil, err
	}
	if out.Result.FilePath == "" {
		return nil, fmt.Errorf("%w: getFile: empty file_path for %s", ErrTransport, fileID)
	}
	return &out.Result, nil
}

// DownloadFile fetches the bytes behind a path returned by GetFile. The
// path goes on the wire unescaped: "voice/file_7.oga" keeps its slash.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetRawPathParam("path", strings.TrimLeft(filePath, "/")).
		Get("/file/bot" + c.token + "/{path}")
	if err := c.check("download", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// FetchFile performs the two-step fetch: GetFile, then DownloadFile.
func (c *Client) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.DownloadFile(ctx, f.FilePath)
}

// SendMessage posts text to chatID, as a reply when replyTo is non-zero.
func (c *Client) SendMessage(ctx context.Context, chatID, replyTo int64, text string) error {
	body := map[string]any{"chat_id": chatID, "text": text}
	if replyTo != 0 {
		body["reply_to_message_id"] = replyTo
	}
	var out envelope[map[string]any]
	return c.call(ctx, "sendMessage", body, &out)
}

type okReply interface {
	ok() (bool, int, string)
}

func (e *envelope[T]) ok() (bool, int, string) { return e.OK, e.ErrorCode, e.Description }

func (c *Client) call(ctx context.Context, method string, body any, out okReply) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(out).
		ForceContentType("application/json").
		Post("/bot" + c.token + "/" + method)
	if err := c.check(method, resp, err); err != nil {
		return err
	}
	if ok, code, desc := out.ok(); !ok {
		if code == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: %s", ErrUnauthorized, method, desc)
		}
		return fmt.Errorf("%w: %s: %d %s", ErrTransport, method, code, desc)
	}
	return nil
}

// check classifies a response. The token is part of every URL, so it is
// scrubbed from transport error text.
func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		msg := err.Error()
		if c.token != "" {
			msg = strings.ReplaceAll(msg, c.token, "<redacted>")
		}
		for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
			if errors.Is(err, ctxErr) {
				return fmt.Errorf("%w: %s: %w", ErrTransport, op, ctxErr)
			}
		}
		return fmt.Errorf("%w: %s: %s", ErrTransport, op, msg)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, op)
	case code < 200 || code > 299:
		return fmt.Errorf("%w: %s: status %d", ErrTransport, op, code)
	}
	return nil
}
