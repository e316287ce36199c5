package websearch

import (
	"strings"
	"testing"
)

func TestGuardURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		blocked bool
	}{
		{"public https", "https://example.com/page", false},
		{"public http", "http://example.com", false},
		{"public ip", "https://93.184.216.34/", false},
		{"loopback", "http://127.0.0.1/admin", true},
		{"loopback name range", "http://127.8.8.8:9000/", true},
		{"private 10", "http://10.0.0.5/internal", true},
		{"private 192.168", "https://192.168.1.1/", true},
		{"private 172.16", "http://172.16.0.10/", true},
		{"link local", "http://169.254.169.254/latest/meta-data", true},
		{"unspecified", "http://0.0.0.0/", true},
		{"multicast", "http://224.0.0.1/", true},
		{"reserved 240", "http://240.1.2.3/", true},
		{"cgnat", "http://100.64.0.1/", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"file scheme", "file:///etc/passwd", true},
		{"gopher scheme", "gopher://example.com", true},
		{"missing host", "http:///path", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := GuardURL(tc.url)
			if tc.blocked && err == nil {
				t.Fatalf("GuardURL(%q) = nil, want error", tc.url)
			}
			if !tc.blocked && err != nil {
				t.Fatalf("GuardURL(%q) = %v, want nil", tc.url, err)
			}
		})
	}
}

func TestParsePageStripsScripts(t *testing.T) {
	page := `<html><head><title>Greetings</title><script>var x=1;</script>
<style>body{}</style></head>
<body><nav>menu</nav><p>Hello   world</p><noscript>enable js</noscript></body></html>`
	title, text, err := ParsePage(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ParsePage returned error: %v", err)
	}
	if title != "Greetings" {
		t.Fatalf("title = %q", title)
	}
	if text != "Hello world" {
		t.Fatalf("text = %q", text)
	}
}
