package kkex

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"kkexlink/pkg/core"
)

const exchangeName = "kkex"

// jsonAPI decodes numbers as json.Number so decimals keep their exact text.
var jsonAPI = sonic.Config{UseNumber: true}.Froze()

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Protocol builds and signs venue requests. Public calls are GETs under
// {APIURL}/v1 with parameters on the query string; private calls are
// form-encoded POSTs under {APIURL}/v2.
type Protocol struct {
	apiURL string
}

func NewProtocol(apiURL string) *Protocol {
	return &Protocol{apiURL: strings.TrimRight(apiURL, "/")}
}

func (p *Protocol) Name() string {
	return exchangeName
}

func (p *Protocol) Version() string {
	return "2"
}

func (p *Protocol) BaseURL(private bool) string {
	if private {
		return p.apiURL + "/v2"
	}
	return p.apiURL + "/v1"
}

func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpGetProducts,
		core.OpGetTickers,
		core.OpGetTicker,
		core.OpGetOrderBook,
		core.OpGetTrades,
		core.OpGetKlines,
		core.OpGetBalance,
		core.OpPlaceOrder,
		core.OpCancelOrder,
		core.OpGetOrder,
		core.OpGetOrderHistory,
	}
}

var (
	publicPaths = map[core.Operation]string{
		core.OpGetProducts:  "/products",
		core.OpGetTickers:   "/tickers",
		core.OpGetTicker:    "/ticker",
		core.OpGetOrderBook: "/depth",
		core.OpGetTrades:    "/trades",
		core.OpGetKlines:    "/kline",
	}
	privatePaths = map[core.Operation]string{
		core.OpGetBalance:      "/userinfo",
		core.OpPlaceOrder:      "/trade",
		core.OpCancelOrder:     "/cancel_order",
		core.OpGetOrder:        "/order_info",
		core.OpGetOrderHistory: "/order_history",
	}
	// requiredParams are checked before a request is built.
	requiredParams = map[core.Operation][]string{
		core.OpGetTicker:       {"symbol"},
		core.OpGetOrderBook:    {"symbol"},
		core.OpGetTrades:       {"symbol"},
		core.OpGetKlines:       {"symbol", "type"},
		core.OpPlaceOrder:      {"symbol", "type"},
		core.OpCancelOrder:     {"symbol", "order_id"},
		core.OpGetOrder:        {"symbol", "order_id"},
		core.OpGetOrderHistory: {"symbol", "status"},
	}
)

// BuildRequest constructs an unsigned request. Private requests carry their
// parameters as a core.Params body until SignRequest encodes them.
func (p *Protocol) BuildRequest(_ context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	for _, key := range requiredParams[op] {
		if v, ok := params[key]; !ok || v == nil || core.FormatParam(v) == "" {
			return nil, core.NewValidationError(exchangeName, "%s requires parameter %s", op, key)
		}
	}

	if path, ok := publicPaths[op]; ok {
		req := core.NewRequest(http.MethodGet, p.BaseURL(false), path)
		req.SetQueryParams(params)
		req.SetHeader("Content-Type", contentTypeJSON)
		return req, nil
	}

	if path, ok := privatePaths[op]; ok {
		req := core.NewRequest(http.MethodPost, p.BaseURL(true), path)
		req.SetBody(params.Clone())
		req.SetPrivate(true)
		return req, nil
	}

	return nil, core.NewExchangeError(exchangeName, core.ErrorTypeBadRequest, 0,
		fmt.Sprintf("unsupported operation: %s", op)).WithCode(core.ErrCodeUnsupported)
}

// SignRequest turns a private request into its wire form: the signature is
// computed over the parameters, nonce and api key, and the body becomes a
// form-encoded string. Public requests are left untouched.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials, nonce int64) error {
	if !req.Private {
		return nil
	}
	if !creds.Complete() {
		return core.NewAuthenticationError(exchangeName, core.ErrNoCredentials)
	}

	var params core.Params
	switch b := req.Body.(type) {
	case nil:
	case core.Params:
		params = b.Clone()
	default:
		return fmt.Errorf("private request body has type %T", req.Body)
	}
	for _, reserved := range []string{fieldAPIKey, fieldSign, fieldNonce, fieldSecretKey} {
		delete(params, reserved)
	}

	sign := Sign(params, creds.APIKey, creds.SecretKey, nonce)
	req.SetBody(EncodeBody(params, creds.APIKey, sign, nonce))
	req.SetHeader("Content-Type", contentTypeForm)
	return nil
}

type resultEnvelope struct {
	Result    *bool  `json:"result"`
	ErrorCode any    `json:"error_code"`
	Message   string `json:"msg"`
}

// CheckResponse turns HTTP failures and result:false envelopes into typed errors.
// Bodies that are not JSON objects, such as trade and kline arrays, pass.
func (p *Protocol) CheckResponse(op core.Operation, status int, body []byte) error {
	if status >= 400 {
		errType, code := mapStatusCode(status)
		e := core.NewExchangeError(exchangeName, errType, status, truncate(string(body), 256))
		if code != "" {
			e = e.WithCode(code)
		}
		return e
	}

	var env resultEnvelope
	if err := jsonAPI.Unmarshal(body, &env); err != nil {
		return nil
	}
	if env.Result == nil || *env.Result {
		return nil
	}

	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("%s rejected", op)
	}
	errType, code := core.ErrorTypeBadRequest, core.ErrCodeBadRequest
	switch op {
	case core.OpGetOrder:
		errType, code = core.ErrorTypeNotFound, core.ErrCodeNotFound
	case core.OpPlaceOrder, core.OpCancelOrder:
		errType, code = core.ErrorTypeInvalidOrder, core.ErrCodeInvalidOrder
	}
	e := core.NewExchangeError(exchangeName, errType, status, msg).WithCode(code)
	if venueCode := stringValue(env.ErrorCode); venueCode != "" {
		e.Code = venueCode
	}
	e.RawError = string(body)
	return e
}

func mapStatusCode(statusCode int) (core.ErrorType, core.ErrorCode) {
	switch {
	case statusCode >= 500:
		return core.ErrorTypeServerError, core.ErrCodeServerError
	case statusCode == 429:
		return core.ErrorTypeRateLimit, core.ErrCodeRateLimit
	case statusCode == 401 || statusCode == 403:
		return core.ErrorTypeAuthentication, core.ErrCodeAuth
	case statusCode == 400:
		return core.ErrorTypeBadRequest, core.ErrCodeBadRequest
	case statusCode == 404:
		return core.ErrorTypeNotFound, core.ErrCodeNotFound
	default:
		return core.ErrorTypeUnknown, ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
