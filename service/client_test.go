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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchOKClassifiesSuccessfulListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"a","type":"structures"}],"meta":{"data_returned":1}}`))
	}))
	defer srv.Close()

	c := NewUpstreamClient()
	outcome := c.Fetch(context.Background(), "D1", srv.URL, "v1", "structures", nil, time.Second)

	if outcome.Kind != OutcomeOK {
		t.Fatalf("Kind = %s, want ok (%+v)", outcome.Kind, outcome)
	}
	if outcome.HTTPStatus != 200 {
		t.Fatalf("HTTPStatus = %d, want 200", outcome.HTTPStatus)
	}
}

func TestFetchUpstreamErrorClassifiesNon2xxWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"boom"}]}`))
	}))
	defer srv.Close()

	c := NewUpstreamClient()
	outcome := c.Fetch(context.Background(), "D1", srv.URL, "v1", "structures", nil, time.Second)

	if outcome.Kind != OutcomeUpstreamError {
		t.Fatalf("Kind = %s, want upstream_error (%+v)", outcome.Kind, outcome)
	}
	if outcome.HTTPStatus != 500 {
		t.Fatalf("HTTPStatus = %d, want 500", outcome.HTTPStatus)
	}
}

func TestFetchTimeoutClassifiesAsTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewUpstreamClient()
	outcome := c.Fetch(context.Background(), "D1", srv.URL, "v1", "structures", nil, 10*time.Millisecond)

	if outcome.Kind != OutcomeTransportError {
		t.Fatalf("Kind = %s, want transport_error (%+v)", outcome.Kind, outcome)
	}
	if outcome.TransportKind != TransportTimeout {
		t.Fatalf("TransportKind = %s, want timeout", outcome.TransportKind)
	}
}

func TestFetchConnectionRefusedClassifiesAsTransportConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close() // closed immediately: nothing is listening at addr anymore

	c := NewUpstreamClient()
	outcome := c.Fetch(context.Background(), "D1", addr, "v1", "structures", nil, time.Second)

	if outcome.Kind != OutcomeTransportError {
		t.Fatalf("Kind = %s, want transport_error (%+v)", outcome.Kind, outcome)
	}
	if outcome.TransportKind != TransportConnect {
		t.Fatalf("TransportKind = %s, want connect", outcome.TransportKind)
	}
}

func TestFetchEmptyBodyNon2xxIsNotMisreadAsConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewUpstreamClient()
	outcome := c.Fetch(context.Background(), "D1", srv.URL, "v1", "structures", nil, time.Second)

	// An empty body can't be decoded as JSON, so this still surfaces as a
	// transport_error (decode), not silently as ok -- but it must come from
	// the actual round trip having happened, not be confused with a dial
	// failure that never reached the server at all.
	if outcome.Kind != OutcomeTransportError {
		t.Fatalf("Kind = %s, want transport_error", outcome.Kind)
	}
	if outcome.TransportKind != TransportDecode {
		t.Fatalf("TransportKind = %s, want decode (the round trip completed; a dial failure is a different bug)", outcome.TransportKind)
	}
}

func TestThrottleAppliesPerDatabaseRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewUpstreamClient()
	c.Throttle("D1", 1000, 1)

	outcome := c.Fetch(context.Background(), "D1", srv.URL, "v1", "structures", nil, time.Second)
	if outcome.Kind != OutcomeOK {
		t.Fatalf("Kind = %s, want ok after throttling with ample budget", outcome.Kind)
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
}
