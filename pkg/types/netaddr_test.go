package types

import "testing"

func TestParseURI(t *testing.T) {
	addr, err := ParseURI("tcp://127.0.0.1:4040")
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if addr.Host != "127.0.0.1" || addr.Port != 4040 {
		t.Fatalf("ParseURI = %+v, want host 127.0.0.1 port 4040", addr)
	}
	if addr.String() != "tcp://127.0.0.1:4040" {
		t.Fatalf("String = %q", addr.String())
	}
	if addr.HostPort() != "127.0.0.1:4040" {
		t.Fatalf("HostPort = %q", addr.HostPort())
	}
}

func TestParseURIIPv6(t *testing.T) {
	addr, err := ParseURI("tcp://[::1]:9000")
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if addr.Host != "::1" || addr.Port != 9000 {
		t.Fatalf("ParseURI = %+v", addr)
	}
	if addr.HostPort() != "[::1]:9000" {
		t.Fatalf("HostPort = %q", addr.HostPort())
	}
}

func TestParseURIRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"127.0.0.1:4040",       // missing scheme
		"udp://127.0.0.1:4040", // wrong scheme
		"tcp://127.0.0.1",      // missing port
		"tcp://:4040",          // empty host
		"tcp://host:notaport",
		"tcp://host:0",
		"tcp://host:70000",
	}
	for _, uri := range bad {
		if _, err := ParseURI(uri); err == nil {
			t.Errorf("ParseURI(%q) succeeded, want error", uri)
		}
	}
}
