package domain

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
)

// Pagination conventions used by the Google Photos APIs.
const (
	// PageTokenParam is the query parameter / body field carrying the continuation token.
	PageTokenParam = "pageToken"
	// NextPageTokenField is the response field holding the next continuation token.
	NextPageTokenField = "nextPageToken"
)

// Request describes one call against the remote API.
// A Request is immutable: every With* method returns a modified copy.
type Request struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
	scope  string
}

// NewRequest creates a request for method and path (relative to the API base URL).
// scope is the minimum OAuth scope the call requires.
func NewRequest(method, path, scope string) Request {
	return Request{method: method, path: path, scope: scope}
}

// Get is a shorthand for NewRequest(http.MethodGet, ...).
func Get(path, scope string) Request {
	return NewRequest(http.MethodGet, path, scope)
}

// Post is a shorthand for NewRequest(http.MethodPost, ...).
func Post(path, scope string) Request {
	return NewRequest(http.MethodPost, path, scope)
}

// WithQuery returns a copy with the query parameter set.
func (r Request) WithQuery(key, value string) Request {
	q := cloneValues(r.query)
	q.Set(key, value)
	r.query = q
	return r
}

// WithBody returns a copy with the JSON body field set.
func (r Request) WithBody(key string, value any) Request {
	b := make(map[string]any, len(r.body)+1)
	for k, v := range r.body {
		b[k] = v
	}
	b[key] = value
	r.body = b
	return r
}

// WithPageToken returns a copy carrying the continuation token.
// GET requests carry it in the query string, others in the JSON body.
func (r Request) WithPageToken(token string) Request {
	if r.method == http.MethodGet || r.method == "" {
		return r.WithQuery(PageTokenParam, token)
	}
	return r.WithBody(PageTokenParam, token)
}

// Method returns the HTTP method.
func (r Request) Method() string {
	if r.method == "" {
		return http.MethodGet
	}
	return r.method
}

// Path returns the resource path.
func (r Request) Path() string { return r.path }

// Scope returns the minimum scope required by the call.
func (r Request) Scope() string { return r.scope }

// Query returns a copy of the query parameters.
func (r Request) Query() url.Values { return cloneValues(r.query) }

// HasBody returns true if the request carries a JSON body.
func (r Request) HasBody() bool { return len(r.body) > 0 }

// BodyJSON encodes the body. Returns nil for requests without a body.
func (r Request) BodyJSON() ([]byte, error) {
	if len(r.body) == 0 {
		return nil, nil
	}
	return json.Marshal(r.body)
}

// PageToken returns the continuation token carried by the request, if any.
func (r Request) PageToken() string {
	if v := r.query.Get(PageTokenParam); v != "" {
		return v
	}
	if v, ok := r.body[PageTokenParam].(string); ok {
		return v
	}
	return ""
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cursor is set when the body carried a continuation token.
	Cursor *PageCursor
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// PageCursor resumes a paginated listing.
// It is bound to the credential that produced it and must be re-derived
// after re-authorisation.
type PageCursor struct {
	Token        string
	Request      Request
	CredentialID string
}

// Next returns the request that fetches the page after this cursor.
func (c *PageCursor) Next() Request {
	return c.Request.WithPageToken(c.Token)
}

// cursorWire is the serialised form of a PageCursor.
type cursorWire struct {
	Version      int            `json:"v"`
	Token        string         `json:"t"`
	Method       string         `json:"m"`
	Path         string         `json:"p"`
	Query        url.Values     `json:"q,omitempty"`
	Body         map[string]any `json:"b,omitempty"`
	Scope        string         `json:"s,omitempty"`
	CredentialID string         `json:"c"`
}

// Encode serialises the cursor to a base64 string for storage.
func (c *PageCursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(cursorWire{
		Version:      CursorVersion,
		Token:        c.Token,
		Method:       c.Request.method,
		Path:         c.Request.path,
		Query:        c.Request.query,
		Body:         c.Request.body,
		Scope:        c.Request.scope,
		CredentialID: c.CredentialID,
	})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor produced by Encode.
func DecodeCursor(s string) (*PageCursor, error) {
	if s == "" {
		return nil, ErrCursorInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrCursorInvalid
	}
	var w cursorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrCursorInvalid
	}
	if w.Version > CursorVersion || w.Token == "" || w.Path == "" {
		return nil, ErrCursorInvalid
	}
	return &PageCursor{
		Token: w.Token,
		Request: Request{
			method: w.Method,
			path:   w.Path,
			query:  w.Query,
			body:   w.Body,
			scope:  w.Scope,
		},
		CredentialID: w.CredentialID,
	}, nil
}
