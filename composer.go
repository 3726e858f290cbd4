package webserve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cbroglie/mustache"
)

// ComposeResponse runs the template pipeline (if res.Template is set) and
// then frames the result into a wire-ready header string and Body.
func ComposeResponse(cfg *ConnConfig, req *Request, res Response) (header string, body Body) {
	var b Body
	if res.Template != "" {
		res, b = ProcessTemplate(cfg, req, res)
	} else {
		b = res.Body
	}
	return frame(res, b)
}

// ProcessTemplate implements §4.E's template pipeline: load the named
// resource, optionally brace-check it in debug mode, render it as Mustache
// against res.Context, and inject "base-path" first. On any load or
// brace-check failure, cfg.ReadError is rendered instead and the response is
// downgraded to 403.
func ProcessTemplate(cfg *ConnConfig, req *Request, res Response) (Response, Body) {
	path := ResolvePath(cfg.ResourcesRoot, res.Template)

	raw, err := cfg.LoadResource(path)
	text := string(raw)

	if err == nil && cfg.Settings["debug"] == "true" && !bracesBalanced(text) {
		err = fmt.Errorf("mismatched curly braces")
	}

	if err != nil {
		if cfg.Logger != nil && cfg.ServerInfo != "unit test" {
			cfg.Logger.Errorf("error %v trying to read %s", err, path)
		}

		rendered, rerr := mustache.Render(cfg.ReadError, map[string]string{"request-path": req.Path})
		if rerr != nil {
			rendered = cfg.ReadError
		}

		errRes := MakeInitialResponse(cfg, req, "403", "Forbidden", "text/html; charset=UTF-8")
		return errRes, StringBody(rendered)
	}

	if !strings.HasPrefix(res.Status, "403") && len(res.Context) > 0 {
		baseDir := urlDirname(res.Template)
		basePath := fmt.Sprintf("http://%s:%d/%s/", req.LocalAddr, cfg.Port, baseDir)
		res.Context["base-path"] = basePath

		rendered, rerr := mustache.Render(text, res.Context)
		if rerr != nil {
			if cfg.Logger != nil {
				cfg.Logger.Errorf("error %v rendering template %s", rerr, path)
			}
			rendered = text
		}
		return res, StringBody(rendered)
	}

	return res, StringBody(text)
}

// urlDirname returns the portion of path up to and including the first "/",
// or the whole string if it has none.
func urlDirname(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i+1]
	}
	return path
}

// bracesBalanced reports whether every "{{" in text is eventually followed
// by a "}}". Used only when settings["debug"] == "true"; the Mustache
// mustache renderer this package uses hangs on unbalanced braces rather
// than erroring cleanly, hence the pre-check.
func bracesBalanced(text string) bool {
	index := 0
	for {
		open := strings.Index(text[index:], "{{")
		if open < 0 {
			return true
		}
		open += index

		close := strings.Index(text[open+2:], "}}")
		if close < 0 {
			return false
		}
		index = open + 2 + close + 2
	}
}

// frame implements §4.E's framing rules: walk headers in order, substitute
// the true body length for a literal "Content-Length: 0" sentinel, assert
// Content-Length and chunked Transfer-Encoding are mutually exclusive, wrap
// the body in a single chunk when chunked, and otherwise append a computed
// Content-Length.
func frame(res Response, body Body) (string, Body) {
	var headerLines strings.Builder
	hasContentLength := false
	isChunked := false

	res.Headers.Each(func(name, value string) {
		if strings.EqualFold(name, "Content-Length") {
			hasContentLength = true
			if value == "0" {
				value = strconv.Itoa(body.Len())
			}
		} else if strings.EqualFold(name, "Transfer-Encoding") && strings.EqualFold(value, "chunked") {
			isChunked = true
		}
		headerLines.WriteString(name)
		headerLines.WriteString(": ")
		headerLines.WriteString(value)
		headerLines.WriteString("\r\n")
	})

	if isChunked {
		if hasContentLength {
			panic("webserve: response has both Content-Length and chunked Transfer-Encoding")
		}
		body = CompoundBody(
			StringBody(fmt.Sprintf("%X\r\n", body.Len())),
			body,
			StringBody("\r\n"),
		)
	} else if !hasContentLength {
		headerLines.WriteString("Content-Length: ")
		headerLines.WriteString(strconv.Itoa(body.Len()))
		headerLines.WriteString("\r\n")
	}

	header := "HTTP/1.1 " + res.Status + "\r\n" + headerLines.String() + "\r\n"
	return header, body
}
