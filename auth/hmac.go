package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Signing header names and constants.
const (
	HeaderAuthorization = "Authorization"
	HeaderDate          = "X-Sdk-Date"
	HeaderSecurityToken = "X-Sdk-Security-Token"
	HeaderContentSHA256 = "X-Sdk-Content-Sha256"

	SigningAlgorithm = "SDK1-HMAC-SHA256"
	UnsignedPayload  = "UNSIGNED-PAYLOAD"

	timeFormat      = "20060102T150405Z"
	shortTimeFormat = "20060102"
	scopeTerminator = "sdk1_request"
)

// headers never included in the signature.
var unsignedHeaders = map[string]struct{}{
	"authorization": {},
	"user-agent":    {},
}

// HMACSigner signs requests with an HMAC-SHA256 signature over a canonical
// form of the request, scoped to a date, region and service.
type HMACSigner struct {
	Region  string
	Service string

	now func() time.Time
}

// HMACOption configures an HMACSigner.
type HMACOption func(*HMACSigner)

// WithSigningClock replaces time.Now. Used by tests.
func WithSigningClock(now func() time.Time) HMACOption {
	return func(s *HMACSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewHMACSigner creates a signer for region. When service is empty the
// request's ServiceName is used.
func NewHMACSigner(region, service string, opts ...HMACOption) *HMACSigner {
	s := &HMACSigner{Region: region, Service: service, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign adds the date, token, payload hash and Authorization headers.
// Anonymous credentials leave the request untouched. The signing time is
// corrected by req.TimeOffset.
func (s *HMACSigner) Sign(_ context.Context, req *wire.Request, creds Credentials) error {
	if creds.IsAnonymous() {
		return nil
	}
	if req.Endpoint == nil {
		return errors.New("auth: cannot sign request without endpoint")
	}

	service := s.Service
	if service == "" {
		service = req.ServiceName
	}

	signTime := s.now().Add(-req.TimeOffset).UTC()
	date := signTime.Format(shortTimeFormat)

	req.Headers.Del(HeaderAuthorization)
	req.SetHeader(HeaderDate, signTime.Format(timeFormat))
	if creds.SessionToken != "" {
		req.SetHeader(HeaderSecurityToken, creds.SessionToken)
	}

	payloadHash, err := hashPayload(req.Body)
	if err != nil {
		return fmt.Errorf("auth: hash payload: %w", err)
	}
	req.SetHeader(HeaderContentSHA256, payloadHash)

	canonical, signedHeaders := canonicalRequest(req, payloadHash)
	scope := strings.Join([]string{date, s.Region, service, scopeTerminator}, "/")
	stringToSign := strings.Join([]string{
		SigningAlgorithm,
		signTime.Format(timeFormat),
		scope,
		hexSHA256([]byte(canonical)),
	}, "\n")

	key := deriveKey(creds.SecretAccessKey, date, s.Region, service)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	req.SetHeader(HeaderAuthorization, fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		SigningAlgorithm, creds.AccessKeyID, scope, signedHeaders, signature,
	))
	return nil
}

func hashPayload(body wire.Body) (string, error) {
	if body == nil {
		return hexSHA256(nil), nil
	}
	if !body.Rewindable() {
		return UnsignedPayload, nil
	}
	data, err := wire.ReadAllAndRewind(body)
	if err != nil {
		return "", err
	}
	return hexSHA256(data), nil
}

// canonicalRequest returns the canonical request text and the signed header list.
func canonicalRequest(req *wire.Request, payloadHash string) (string, string) {
	u := req.URL()

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	headers := map[string]string{"host": u.Host}
	for k, v := range req.Headers {
		name := strings.ToLower(k)
		if _, skip := unsignedHeaders[name]; skip {
			continue
		}
		vals := make([]string, len(v))
		for i, s := range v {
			vals[i] = strings.Join(strings.Fields(s), " ")
		}
		headers[name] = strings.Join(vals, ",")
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var ch strings.Builder
	for _, name := range names {
		ch.WriteString(name)
		ch.WriteByte(':')
		ch.WriteString(headers[name])
		ch.WriteByte('\n')
	}
	signed := strings.Join(names, ";")

	return strings.Join([]string{
		req.Method,
		path,
		canonicalQuery(req.Query),
		ch.String(),
		signed,
		payloadHash,
	}, "\n"), signed
}

func canonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(q))
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, escape(k)+"="+escape(v))
		}
	}
	return strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func deriveKey(secret, date, region, service string) []byte {
	k := hmacSHA256([]byte("SDK1"+secret), []byte(date))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
