package core

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Params holds request parameters keyed by their venue field name.
type Params map[string]any

// Clone returns a shallow copy; nil stays nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// SortedKeys returns the parameter names in lexicographic order.
func (p Params) SortedKeys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Request is a transport-ready description of one venue call.
type Request struct {
	Method  string            `json:"method"`
	BaseURL string            `json:"base_url"`
	Path    string            `json:"path"`
	Query   Params            `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Private requests carry account credentials and must be signed before sending.
	Private bool `json:"private"`
}

func NewRequest(method, baseURL, path string) *Request {
	return &Request{
		Method:  method,
		BaseURL: baseURL,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
	}
}

// URL joins the base URL and path.
func (r *Request) URL() string {
	return r.BaseURL + r.Path
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetPrivate(private bool) *Request {
	r.Private = private
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// FormatParam renders a parameter value the way the venue expects it on the wire.
func FormatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case *apd.Decimal:
		if val == nil {
			return ""
		}
		return val.Text('f')
	case apd.Decimal:
		return val.Text('f')
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
