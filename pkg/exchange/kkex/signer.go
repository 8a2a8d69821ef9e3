package kkex

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"kkexlink/pkg/core"
)

const (
	fieldAPIKey    = "api_key"
	fieldNonce     = "nonce"
	fieldSign      = "sign"
	fieldSecretKey = "secret_key"
)

// escapeReplacer turns url.QueryEscape output into encodeURIComponent form,
// which is what the venue recomputes the signature over.
var escapeReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func escape(s string) string {
	return escapeReplacer.Replace(url.QueryEscape(s))
}

type pair struct {
	key   string
	value string
}

func encodePairs(pairs []pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.key))
		b.WriteByte('=')
		b.WriteString(escape(p.value))
	}
	return b.String()
}

// Sign computes the request signature: the parameters plus nonce and api_key,
// sorted by key, with secret_key appended last, URL-encoded, MD5-hashed and
// rendered as uppercase hex.
func Sign(params core.Params, apiKey, secret string, nonce int64) string {
	payload := make(core.Params, len(params)+2)
	for k, v := range params {
		payload[k] = v
	}
	payload[fieldNonce] = nonce
	payload[fieldAPIKey] = apiKey

	pairs := make([]pair, 0, len(payload)+1)
	for _, k := range payload.SortedKeys() {
		pairs = append(pairs, pair{k, core.FormatParam(payload[k])})
	}
	pairs = append(pairs, pair{fieldSecretKey, secret})

	sum := md5.Sum([]byte(encodePairs(pairs)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// EncodeBody renders the form body of a signed request: api_key, sign and
// nonce first, then the request parameters in key order.
func EncodeBody(params core.Params, apiKey, sign string, nonce int64) string {
	pairs := []pair{
		{fieldAPIKey, apiKey},
		{fieldSign, sign},
		{fieldNonce, strconv.FormatInt(nonce, 10)},
	}
	for _, k := range params.SortedKeys() {
		switch k {
		case fieldAPIKey, fieldSign, fieldNonce:
			continue
		}
		pairs = append(pairs, pair{k, core.FormatParam(params[k])})
	}
	return encodePairs(pairs)
}
