package packmgr

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/je"
)

// Transport carries requests to a remote package manager.
// Paths are absolute on the remote, e.g. "/etc/packages/je/je-pkg-1.zip",
// and may include a query string.
type Transport interface {
	// Get streams the body of a GET of path into w.
	Get(ctx context.Context, path string, w io.Writer) (int64, error)

	// Post sends a bodiless POST to path and returns the reply body.
	Post(ctx context.Context, path string) ([]byte, error)

	// PostFile sends r as the multipart form file named field in a POST to path
	// and returns the reply body.
	PostFile(ctx context.Context, path, field, filename string, r io.Reader) ([]byte, error)
}

// maxReply bounds how much of a service reply is read into memory.
const maxReply = 1 << 20

var _ Transport = &Client{}

// Client is a Transport speaking HTTP with Basic authentication to one Instance.
type Client struct {
	inst je.Instance
	hc   *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient makes a Client send its requests with hc instead of http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.hc = hc
	}
}

// NewClient produces a Client for inst.
func NewClient(inst je.Instance, opts ...ClientOption) *Client {
	c := &Client{
		inst: inst,
		hc:   http.DefaultClient,
	}
	c.inst.Address = strings.TrimRight(c.inst.Address, "/")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Instance is the remote c talks to.
func (c *Client) Instance() je.Instance {
	return c.inst
}

func (c *Client) Get(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, path, "", http.NoBody)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &je.TransportError{Method: http.MethodGet, URL: c.url(path), Status: resp.StatusCode, Err: errors.Wrap(err, "reading body")}
	}
	return n, nil
}

func (c *Client) Post(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, path, "", http.NoBody)
	if err != nil {
		return nil, err
	}
	return c.reply(path, resp)
}

func (c *Client) PostFile(ctx context.Context, path, field, filename string, r io.Reader) ([]byte, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return nil, errors.Wrap(err, "creating form file")
	}
	if _, err = io.Copy(fw, r); err != nil {
		return nil, errors.Wrapf(err, "copying %s into form", filename)
	}
	if err = mw.Close(); err != nil {
		return nil, errors.Wrap(err, "finishing form")
	}

	resp, err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	return c.reply(path, resp)
}

func (c *Client) url(path string) string {
	return c.inst.Address + path
}

// do sends a request and checks its status.
// On success the caller must close the response body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	u := c.url(path)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &je.TransportError{Method: method, URL: u, Err: errors.Wrap(err, "creating request")}
	}
	req.SetBasicAuth(c.inst.User, c.inst.Password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &je.TransportError{Method: method, URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &je.TransportError{
			Method: method,
			URL:    u,
			Status: resp.StatusCode,
			Msg:    strings.TrimSpace(string(excerpt)),
		}
	}
	return resp, nil
}

func (c *Client) reply(path string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReply))
	if err != nil {
		return nil, &je.TransportError{Method: http.MethodPost, URL: c.url(path), Status: resp.StatusCode, Err: errors.Wrap(err, "reading reply")}
	}
	return b, nil
}
