package webserve

import "testing"

func TestParseRequestSimple(t *testing.T) {
	raw := "GET /foo/bar HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("method = %q, want GET", req.Method)
	}
	if req.URL != "/foo/bar" {
		t.Errorf("url = %q", req.URL)
	}
	if req.MajorVersion != 1 || req.MinorVersion != 1 {
		t.Errorf("version = %d.%d, want 1.1", req.MajorVersion, req.MinorVersion)
	}
	if got, ok := req.Headers["host"]; !ok || got != "example.com" {
		t.Errorf("headers[host] = %q, %v", got, ok)
	}
}

func TestParseRequestLowercasesHeaderNames(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Custom-Header: value\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := req.Headers["x-custom-header"]; !ok || v != "value" {
		t.Errorf("headers[x-custom-header] = %q, %v", v, ok)
	}
}

func TestParseRequestFoldedHeaderContinuation(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Long: one\r\n two\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Headers["x-long"]; got != "one two" {
		t.Errorf("folded header = %q, want %q", got, "one two")
	}
}

func TestParseRequestAllowsEmptyHeaderValue(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Foo:\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := req.Headers["x-foo"]; !ok || got != "" {
		t.Errorf("headers[x-foo] = %q, %v, want empty value", got, ok)
	}
}

func TestParseRequestDuplicateHeaderLastWriteWins(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-A: first\r\nX-A: second\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Headers["x-a"]; got != "second" {
		t.Errorf("x-a = %q, want %q", got, "second")
	}
}

func TestParseRequestRejectsNonGET(t *testing.T) {
	raw := "POST / HTTP/1.1\r\n\r\n"
	_, err := ParseRequest([]byte(raw))
	if err == nil {
		t.Fatal("expected a ParseError for a non-GET method")
	}
}

func TestParseRequestBadVersionGrammar(t *testing.T) {
	raw := "GET / HTTP/one.one\r\n\r\n"
	_, err := ParseRequest([]byte(raw))
	if err == nil {
		t.Fatal("expected a ParseError for a non-numeric version")
	}
	if err.Line != 1 {
		t.Errorf("err.Line = %d, want 1", err.Line)
	}
}

func TestParseRequestMissingTerminatingBlankLine(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: example.com\r\n"
	_, err := ParseRequest([]byte(raw))
	if err == nil {
		t.Fatal("expected a ParseError when the header block is never terminated")
	}
}

func TestParseRequestReportsPositionOfOffendingLine(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: ok\r\nBroken\r\n"
	_, err := ParseRequest([]byte(raw))
	if err == nil {
		t.Fatal("expected a ParseError for a header missing its colon")
	}
	if err.Line < 3 {
		t.Errorf("err.Line = %d, want >= 3", err.Line)
	}
}
