/*
 * Copyright (C) 2022-2025. Gardel <gardel741@outlook.com> and contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"optimade-gateway-go/util"
)

// OutcomeKind classifies the result of a single upstream fetch.
type OutcomeKind string

const (
	OutcomeOK             OutcomeKind = "ok"
	OutcomeUpstreamError  OutcomeKind = "upstream_error"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// TransportKind classifies the flavour of a transport_error outcome.
type TransportKind string

const (
	TransportTimeout TransportKind = "timeout"
	TransportDNS     TransportKind = "dns"
	TransportConnect TransportKind = "connect"
	TransportTLS     TransportKind = "tls"
	TransportRead    TransportKind = "read"
	TransportDecode  TransportKind = "decode"
)

// Outcome is the typed result of one upstream fetch, tagged with the
// database id it came from so the merger can attribute it.
type Outcome struct {
	DatabaseID    string
	Kind          OutcomeKind
	Body          map[string]interface{} // present when Kind == OutcomeOK or decodable upstream_error
	UpstreamRaw   []byte
	HTTPStatus    int
	TransportKind TransportKind
	Message       string
}

// UpstreamClient issues a single OPTIMADE request against one database and
// returns a typed Outcome. It never retries; retry policy lives above it.
type UpstreamClient struct {
	httpClient *http.Client
	limiters   map[string]*rate.Limiter
}

// NewUpstreamClient builds a client backed by a plain http.Client, mirroring
// the teacher's upstream service construction.
func NewUpstreamClient() *UpstreamClient {
	return &UpstreamClient{
		httpClient: &http.Client{},
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Throttle installs an optional per-database rate limit (requests per
// second, with the given burst). Databases without a configured limiter are
// fetched without throttling.
func (c *UpstreamClient) Throttle(databaseID string, requestsPerSecond float64, burst int) {
	c.limiters[databaseID] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Fetch issues one GET request against base_url/version_path/endpoint with
// the given opaque query parameters, honoring timeout as a hard deadline.
func (c *UpstreamClient) Fetch(ctx context.Context, databaseID, baseURL, versionPath, endpoint string, params map[string]string, timeout time.Duration) Outcome {
	if lim, ok := c.limiters[databaseID]; ok {
		if err := lim.Wait(ctx); err != nil {
			return classifyTransportErr(databaseID, err)
		}
	}

	fullURL, err := buildURL(baseURL, versionPath, endpoint, params)
	if err != nil {
		return Outcome{
			DatabaseID:    databaseID,
			Kind:          OutcomeTransportError,
			TransportKind: TransportConnect,
			Message:       err.Error(),
		}
	}

	// DoHTTPRequestWithContext's err return is non-nil only for a genuine
	// transport failure (request construction, dial/TLS/DNS, body read); a
	// completed round trip returns err == nil regardless of status code, with
	// the non-2xx case surfaced via resp.Error instead.
	resp, err := util.DoHTTPRequestWithContext(ctx, c.httpClient, http.MethodGet, fullURL, nil, timeout)
	if err != nil {
		// resp.Error carries the "failed to read response body" wrapping that
		// distinguishes a read failure from a dial failure; err alone doesn't.
		if resp != nil && resp.Error != nil {
			return classifyTransportErr(databaseID, resp.Error)
		}
		return classifyTransportErr(databaseID, err)
	}

	var decoded map[string]interface{}
	if decErr := json.Unmarshal(resp.Body, &decoded); decErr != nil {
		return Outcome{
			DatabaseID:    databaseID,
			Kind:          OutcomeTransportError,
			TransportKind: TransportDecode,
			Message:       decErr.Error(),
			HTTPStatus:    resp.StatusCode,
		}
	}

	_, hasData := decoded["data"]
	_, hasErrors := decoded["errors"]
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && (hasData || hasErrors) {
		return Outcome{
			DatabaseID: databaseID,
			Kind:       OutcomeOK,
			Body:       decoded,
			HTTPStatus: resp.StatusCode,
		}
	}

	return Outcome{
		DatabaseID: databaseID,
		Kind:       OutcomeUpstreamError,
		Body:       decoded,
		HTTPStatus: resp.StatusCode,
	}
}

// classifyTransportErr maps a transport-layer error into the kind vocabulary
// the merger expects (spec §4.B).
func classifyTransportErr(databaseID string, err error) Outcome {
	kind := TransportConnect

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = TransportTimeout
	case isDNSError(err):
		kind = TransportDNS
	case isDialError(err):
		kind = TransportConnect
	case isTLSError(err):
		kind = TransportTLS
	case isReadError(err):
		kind = TransportRead
	}

	return Outcome{
		DatabaseID:    databaseID,
		Kind:          OutcomeTransportError,
		TransportKind: kind,
		Message:       err.Error(),
	}
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *x509.CertificateInvalidError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError
	return errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr)
}

func isReadError(err error) bool {
	return strings.Contains(err.Error(), "failed to read response body")
}

// buildURL assembles base_url/version_path/endpoint?params, matching the
// upstream's expectation that filter and friends pass through verbatim.
func buildURL(baseURL, versionPath, endpoint string, params map[string]string) (string, error) {
	trimmed := strings.TrimRight(baseURL, "/")
	u, err := url.Parse(fmt.Sprintf("%s/%s/%s", trimmed, strings.Trim(versionPath, "/"), strings.TrimLeft(endpoint, "/")))
	if err != nil {
		return "", err
	}

	q := u.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func intFromMeta(m map[string]interface{}, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := strconv.Atoi(n.String())
		return i
	default:
		return 0
	}
}

func boolFromMeta(m map[string]interface{}, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
