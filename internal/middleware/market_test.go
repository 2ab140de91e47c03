package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func marketProbe(t *testing.T, req *http.Request, lookup CountryLookup) (string, string) {
	t.Helper()
	var market, locale string
	handler := Market("en", "US", lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		market = MarketFromContext(r.Context())
		locale = LocaleFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return market, locale
}

func TestMarketFromHeaderHint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-IPCountry", "au")
	market, locale := marketProbe(t, req, nil)
	if market != "AU" {
		t.Fatalf("market = %q", market)
	}
	if locale != "en" {
		t.Fatalf("locale = %q", locale)
	}
}

func TestMarketFromAcceptLanguageRegion(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.8")
	market, locale := marketProbe(t, req, nil)
	if market != "ID" {
		t.Fatalf("market = %q", market)
	}
	if locale != "id" {
		t.Fatalf("locale = %q", locale)
	}
}

func TestMarketFromGeoIPLookup(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4433"
	market, _ := marketProbe(t, req, func(ip string) (string, error) {
		if ip != "203.0.113.7" {
			t.Fatalf("lookup ip = %q", ip)
		}
		return "JP", nil
	})
	if market != "JP" {
		t.Fatalf("market = %q", market)
	}
}

func TestMarketFallsBackToDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	market, locale := marketProbe(t, req, func(ip string) (string, error) {
		return "", errors.New("db unavailable")
	})
	if market != "US" {
		t.Fatalf("market = %q", market)
	}
	if locale != "en" {
		t.Fatalf("locale = %q", locale)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	req.RemoteAddr = "10.0.0.2:1234"
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("ClientIP = %q", got)
	}
}
