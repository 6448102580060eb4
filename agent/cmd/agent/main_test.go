package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/obsidianstack/truststore-agent/agent/internal/config"
	"github.com/obsidianstack/truststore-agent/agent/internal/expiry"
	"github.com/obsidianstack/truststore-agent/agent/internal/metrics"
	"github.com/obsidianstack/truststore-agent/agent/internal/truststore"
	"github.com/obsidianstack/truststore-agent/agent/internal/truststore/truststoretest"
)

var (
	jan2023 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2024 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func quiet() expiry.Option {
	return expiry.WithObserver(func(expiry.Registration) {})
}

func TestRegisterStores(t *testing.T) {
	t.Setenv("TEST_TS_PASSWORD", truststoretest.Password)
	jks := truststoretest.WriteJKS(t, truststoretest.Password,
		truststoretest.Cert{Alias: "corp-root", NotBefore: jan2023, NotAfter: jan2024},
		truststoretest.Cert{Alias: "corp-issuing", NotBefore: jan2023, NotAfter: jan2024},
	)
	p12 := truststoretest.WritePKCS12(t, truststoretest.Password,
		truststoretest.Cert{Alias: "partner-ca", NotBefore: jan2023, NotAfter: jan2024},
	)
	stores := []config.TrustStoreConfig{
		{Path: jks, Type: "auto", PasswordEnv: "TEST_TS_PASSWORD"},
		{Path: p12, Type: "pkcs12", Password: truststoretest.Password},
	}

	reg := prometheus.NewRegistry()
	registered, err := registerStores(stores, metrics.New(reg), quiet())
	if err != nil {
		t.Fatalf("registerStores() unexpected error: %v", err)
	}

	if got, want := registered[jks], []string{"corp-issuing", "corp-root"}; !reflect.DeepEqual(got, want) {
		t.Errorf("jks aliases: got %v, want %v", got, want)
	}
	if got, want := registered[p12], []string{"partner-ca"}; !reflect.DeepEqual(got, want) {
		t.Errorf("pkcs12 aliases: got %v, want %v", got, want)
	}
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount(): %v", err)
	}
	if n != 3 {
		t.Errorf("gauges: got %d, want 3", n)
	}
}

func TestRegisterStores_Failures(t *testing.T) {
	good := truststoretest.WriteJKS(t, truststoretest.Password,
		truststoretest.Cert{Alias: "ok", NotBefore: jan2023, NotAfter: jan2024})
	mixed := truststoretest.WriteJKS(t, truststoretest.Password,
		truststoretest.Cert{Alias: "fine", NotBefore: jan2023, NotAfter: jan2024},
		truststoretest.Cert{Alias: "secret-key", NotBefore: jan2023, NotAfter: jan2024, Type: "PGP"})

	tests := []struct {
		name   string
		stores []config.TrustStoreConfig
		want   error
		kind   string
	}{
		{
			name: "missing second store",
			stores: []config.TrustStoreConfig{
				{Path: good, Type: "auto", Password: truststoretest.Password},
				{Path: good + ".copy", Type: "auto", Password: "wrong-secret"},
			},
			want: truststore.ErrStoreNotFound,
			kind: "StoreNotFound",
		},
		{
			name:   "decryption",
			stores: []config.TrustStoreConfig{{Path: good, Type: "jks", Password: "wrong-secret"}},
			want:   truststore.ErrStoreDecryptionFailed,
			kind:   "StoreDecryptionFailed",
		},
		{
			name:   "type mismatch",
			stores: []config.TrustStoreConfig{{Path: mixed, Type: "auto", Password: truststoretest.Password}},
			want:   expiry.ErrCertificateTypeMismatch,
			kind:   "CertificateTypeMismatch",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			_, err := registerStores(tc.stores, metrics.New(reg), quiet())
			if !errors.Is(err, tc.want) {
				t.Fatalf("registerStores(): got %v, want %v", err, tc.want)
			}
			if got := failureKind(err); got != tc.kind {
				t.Errorf("failureKind(): got %q, want %q", got, tc.kind)
			}
			n, gerr := testutil.GatherAndCount(reg)
			if gerr != nil {
				t.Fatalf("GatherAndCount(): %v", gerr)
			}
			if n != 0 {
				t.Errorf("gauges after failure: got %d, want 0", n)
			}
		})
	}
}

func TestFailureKind_Unsupported(t *testing.T) {
	path := truststoretest.WriteFile(t, "ca.pem", []byte("-----BEGIN CERTIFICATE-----\n"))
	_, err := truststore.Load(path, "")
	if got := failureKind(err); got != "UnsupportedFormat" {
		t.Errorf("failureKind(): got %q, want UnsupportedFormat", got)
	}
	if got := failureKind(errors.New("other")); got != "Registration" {
		t.Errorf("failureKind(other): got %q, want Registration", got)
	}
}

func TestDiffAliases(t *testing.T) {
	added, removed := diffAliases([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	if !reflect.DeepEqual(added, []string{"d"}) {
		t.Errorf("added: got %v, want [d]", added)
	}
	if !reflect.DeepEqual(removed, []string{"a"}) {
		t.Errorf("removed: got %v, want [a]", removed)
	}

	added, removed = diffAliases([]string{"a"}, []string{"a"})
	if added != nil || removed != nil {
		t.Errorf("unchanged: got added=%v removed=%v, want none", added, removed)
	}
}

func TestChangeHandler(t *testing.T) {
	stores := []config.TrustStoreConfig{
		{Path: "/etc/pki/./a.jks"},
		{Path: "/etc/pki/b.p12"},
	}
	registered := map[string][]string{
		"/etc/pki/./a.jks": {"corp-root"},
		"/etc/pki/b.p12":   {"partner"},
	}

	var got []string
	onChange := changeHandler("./conf//agent.yaml", stores, registered,
		func(ts config.TrustStoreConfig, aliases []string) {
			got = append(got, ts.Path+"="+strings.Join(aliases, ","))
		})

	onChange("/etc/pki/a.jks")
	onChange("conf/agent.yaml")
	onChange("/etc/pki/other.jks")
	onChange("/etc/pki/b.p12")

	want := []string{"/etc/pki/./a.jks=corp-root", "/etc/pki/b.p12=partner"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reported: got %v, want %v", got, want)
	}
}

func TestRunScrape(t *testing.T) {
	path := truststoretest.WriteJKS(t, truststoretest.Password,
		truststoretest.Cert{Alias: "corp-root", NotBefore: jan2023, NotAfter: jan2024})
	stores := []config.TrustStoreConfig{{Path: path, Type: "auto", Password: truststoretest.Password}}

	reg := prometheus.NewRegistry()
	today := time.Date(2023, 12, 22, 0, 0, 0, 0, time.UTC)
	if _, err := registerStores(stores, metrics.New(reg), quiet(),
		expiry.WithClock(func() time.Time { return today })); err != nil {
		t.Fatalf("registerStores(): %v", err)
	}
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	var out bytes.Buffer
	if err := runScrape(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("runScrape(): %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("scrape output: got %d lines, want 2:\n%s", len(lines), out.String())
	}
	fields := strings.Fields(lines[1])
	want := []string{"truststore_corp_root_days", "10", "2024-01-01T00:00:00Z"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("scrape row: got %v, want %v", fields, want)
	}
}

func TestRunScrape_NoGauges(t *testing.T) {
	srv := httptest.NewServer(promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	defer srv.Close()

	if err := runScrape(context.Background(), srv.URL, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for endpoint without truststore gauges, got nil")
	}
}
