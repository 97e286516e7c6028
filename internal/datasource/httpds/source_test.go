package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"magload/internal/datasource"
)

func TestIsURL(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"https://exports.example/Pago_Movil.csv": true,
		"HTTP://host/x.csv":                      true,
		"Pago_Movil.csv":                         false,
		"/srv/exports/http.csv":                  false,
		"file:///tmp/x.csv":                      false,
	} {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q)=%v want %v", in, got, want)
		}
	}
}

func TestSource_Open(t *testing.T) {
	t.Parallel()

	const export = "DATE_PAY;AMOUNT\n2024-01-02;10.5\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.csv", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, export) })
	mux.HandleFunc("/empty.csv", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/gone.csv", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusGone) })
	mux.HandleFunc("/denied.csv", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("ok", func(t *testing.T) {
		rc, err := NewSource(srv.URL+"/ok.csv", Config{}).Open(context.Background())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(b) != export {
			t.Fatalf("body=%q", b)
		}
	})

	cases := []struct {
		path string
		want error
		msg  string
	}{
		{"/missing.csv", datasource.ErrNotFound, "404"},
		{"/gone.csv", datasource.ErrNotFound, "410"},
		{"/empty.csv", datasource.ErrEmpty, "empty"},
		{"/denied.csv", nil, "unexpected status 403"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			_, err := NewSource(srv.URL+tc.path, Config{}).Open(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q does not contain %q", err, tc.msg)
			}
		})
	}
}
