package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// Client talks to the bill JSON API over HTTP
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	username string
	password string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBasicAuth sets the credentials sent on every request
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the API rooted at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing store url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bills returns the bill resource
func (c *Client) Bills() Bills {
	return &clientBills{c: c}
}

// resolve joins a server-relative reference onto the base URL, keeping any
// path prefix of the base. Absolute references are returned unchanged.
func (c *Client) resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}

	u := *c.baseURL
	p, raw := r.Path, r.RawPath
	if !strings.HasPrefix(p, "/") {
		p, raw = "/"+p, ""
	}
	u.Path = c.baseURL.Path + p
	u.RawPath = ""
	if raw != "" {
		u.RawPath = c.baseURL.EscapedPath() + raw
	}
	u.RawQuery = r.RawQuery
	u.Fragment = ""
	return u.String()
}

// send performs a request and returns the response of a successful call.
// The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", accept)
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling bill API: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		detail := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			detail = apiErr.Error
		}
		return nil, &Error{Status: resp.StatusCode, Detail: detail}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.send(ctx, method, path, body, contentType, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Attachment fetches the attachment of a bill owned by email
func (c *Client) Attachment(ctx context.Context, email, id string) (*Attachment, error) {
	path := "/api/bills/" + url.PathEscape(id)

	var b bill.Bill
	if err := c.do(ctx, http.MethodGet, path, nil, "", &b); err != nil {
		return nil, err
	}
	if b.Email != email || !b.HasAttachment() {
		return nil, notFound(id)
	}

	resp, err := c.send(ctx, http.MethodGet, path+"/file", nil, "", "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = bill.ContentType(*b.FileName)
	}
	return &Attachment{ContentType: contentType, Data: data}, nil
}

type clientBills struct {
	c *Client
}

func (b *clientBills) List(ctx context.Context, email string) ([]bill.Bill, error) {
	var bills []bill.Bill
	path := "/api/bills?" + url.Values{"email": {email}}.Encode()
	if err := b.c.do(ctx, http.MethodGet, path, nil, "", &bills); err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []bill.Bill{}
	}
	for i := range bills {
		if bills[i].FileURL != nil {
			resolved := b.c.resolve(*bills[i].FileURL)
			bills[i].FileURL = &resolved
		}
	}
	return bills, nil
}

func (b *clientBills) Create(ctx context.Context, upload bill.Upload) (*bill.Draft, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("email", upload.Email); err != nil {
		return nil, fmt.Errorf("writing email field: %w", err)
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = bill.ContentType(upload.FileName)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.FileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var draft bill.Draft
	if err := b.c.do(ctx, http.MethodPost, "/api/bills", &body, w.FormDataContentType(), &draft); err != nil {
		return nil, err
	}
	draft.FileURL = b.c.resolve(draft.FileURL)
	return &draft, nil
}

func (b *clientBills) Update(ctx context.Context, id string, data bill.Bill) (*bill.Bill, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}

	path := "/api/bills"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}

	var updated bill.Bill
	if err := b.c.do(ctx, http.MethodPut, path, bytes.NewReader(payload), "application/json", &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
