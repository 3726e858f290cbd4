package webserve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newComposerTestConfig(t *testing.T, root string) *ConnConfig {
	t.Helper()
	cache := NewResourceCache(root, DefaultStaticTypeTable(), nil, false)
	return &ConnConfig{
		ResourcesRoot: root,
		ServerInfo:    "unit test",
		Port:          8080,
		LoadResource:  cache.Load,
		ValidResource: cache.Valid,
		Settings:      map[string]string{},
		ReadError:     `<html><body>Could not read URL {{request-path}}</body></html>`,
	}
}

func TestProcessTemplateRendersAgainstContext(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "greet.html"), []byte("Hello, {{name}}!"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := newComposerTestConfig(t, root)
	req := &Request{Path: "/hello", LocalAddr: "127.0.0.1"}
	res := Response{
		Status:   "200 OK",
		Template: "greet.html",
		Context:  TemplateContext{"name": "World"},
	}

	_, body := ProcessTemplate(cfg, req, res)
	if got := string(body.Bytes()); got != "Hello, World!" {
		t.Errorf("got %q", got)
	}
}

func TestProcessTemplateInjectsBasePath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "views"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "views", "page.html"), []byte("{{base-path}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := newComposerTestConfig(t, root)
	req := &Request{Path: "/views/page.html", LocalAddr: "localhost"}
	res := Response{
		Status:   "200 OK",
		Template: "views/page.html",
		Context:  TemplateContext{"x": "1"},
	}

	_, body := ProcessTemplate(cfg, req, res)
	got := string(body.Bytes())
	// The trailing double slash (".../views//") is inherited verbatim from
	// the base_url format: url_dirname already returns a trailing "/", and
	// the format string appends one more after it.
	want := "http://localhost:8080/views//"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProcessTemplateReadErrorOnMissingFile(t *testing.T) {
	root := t.TempDir()
	cfg := newComposerTestConfig(t, root)
	req := &Request{Path: "/missing.html"}
	res := Response{Status: "200 OK", Template: "missing.html", Context: TemplateContext{}}

	errRes, body := ProcessTemplate(cfg, req, res)
	if !strings.HasPrefix(errRes.Status, "403") {
		t.Errorf("status = %q, want 403 prefix", errRes.Status)
	}
	if got := string(body.Bytes()); !strings.Contains(got, "/missing.html") {
		t.Errorf("read-error body %q should mention the request path", got)
	}
}

func TestProcessTemplateSkipsRenderingOn403Status(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "forbidden.html"), []byte("{{status-code}} forbidden"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := newComposerTestConfig(t, root)
	req := &Request{Path: "/x"}
	res := Response{
		Status:   "403 Forbidden",
		Template: "forbidden.html",
		Context:  TemplateContext{"status-code": "403"},
	}

	_, body := ProcessTemplate(cfg, req, res)
	if got := string(body.Bytes()); got != "{{status-code}} forbidden" {
		t.Errorf("expected the raw template text unrendered, got %q", got)
	}
}

func TestBracesBalanced(t *testing.T) {
	if !bracesBalanced("hello {{name}}, you are {{age}}") {
		t.Error("expected balanced braces to pass")
	}
	if bracesBalanced("hello {{name}, unbalanced") {
		t.Error("expected unbalanced braces to fail")
	}
}

func TestUrlDirname(t *testing.T) {
	if got := urlDirname("views/page.html"); got != "views/" {
		t.Errorf("got %q, want views/", got)
	}
	if got := urlDirname("page.html"); got != "page.html" {
		t.Errorf("got %q, want page.html", got)
	}
}

func TestFrameAddsContentLength(t *testing.T) {
	res := Response{Status: "200 OK", Headers: NewHeaders()}
	res.Headers.Set("Content-Type", "text/plain")

	header, body := frame(res, StringBody("hello"))
	if !strings.Contains(header, "Content-Length: 5\r\n") {
		t.Errorf("header = %q, missing Content-Length: 5", header)
	}
	if string(body.Bytes()) != "hello" {
		t.Errorf("body = %q", body.Bytes())
	}
}

func TestFrameSubstitutesZeroContentLengthSentinel(t *testing.T) {
	res := Response{Status: "200 OK", Headers: NewHeaders()}
	res.Headers.Set("Content-Length", "0")

	header, _ := frame(res, StringBody("abcdef"))
	if !strings.Contains(header, "Content-Length: 6\r\n") {
		t.Errorf("header = %q, want substituted length 6", header)
	}
}

func TestFrameWrapsChunkedBodyInSingleChunk(t *testing.T) {
	res := Response{Status: "200 OK", Headers: NewHeaders()}
	res.Headers.Set("Transfer-Encoding", "chunked")

	header, body := frame(res, StringBody("hi"))
	if strings.Contains(header, "Content-Length") {
		t.Errorf("header = %q, should not carry Content-Length when chunked", header)
	}
	got := string(body.Bytes())
	want := "2\r\nhi\r\n"
	if got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestFramePanicsOnConflictingContentLengthAndChunked(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for conflicting Content-Length and chunked Transfer-Encoding")
		}
	}()
	res := Response{Status: "200 OK", Headers: NewHeaders()}
	res.Headers.Set("Content-Length", "3")
	res.Headers.Set("Transfer-Encoding", "chunked")
	frame(res, StringBody("abc"))
}
