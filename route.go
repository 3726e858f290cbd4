package webserve

import "strings"

// QueryParam is a single (key, value) pair parsed from a request's query
// string, in the order it appeared on the wire.
type QueryParam struct {
	Key   string
	Value string
}

// ParseURL splits url into its path and an ordered sequence of query
// params. If the url has no "?", the whole thing is the path and there are
// no params.
//
// Each "&"-segment is split on its first "="; any further "=" stays in the
// value. A malformed query string (any "&"-segment with no "=") is
// deliberately NOT an error: the params are discarded and the path is left
// as the full, unmodified url (query string included). That path will not
// match any route or resource, so it naturally falls through to a 404.
func ParseURL(url string) (path string, params []QueryParam) {
	i := strings.IndexByte(url, '?')
	if i < 0 {
		return url, nil
	}

	query := url[i+1:]
	segments := strings.Split(query, "&")

	parsed := make([]QueryParam, 0, len(segments))
	for _, seg := range segments {
		eq := strings.IndexByte(seg, '=')
		if eq < 0 {
			return url, nil
		}
		parsed = append(parsed, QueryParam{Key: seg[:eq], Value: seg[eq+1:]})
	}

	return url[:i], parsed
}

// Route is a (method, path template, view key) triple. The template may
// contain "{name}" placeholders and an optional trailing "<mime/type>" tag
// on its final segment; MimeType is the default used when the template
// carries no such tag.
type Route struct {
	Method   string
	Template string
	ViewKey  string
	MimeType string
}

// splitMimeTag strips a trailing "<mime/type>" tag from the final segment of
// template, returning the bare template and the declared mime type (empty if
// there was no tag).
func splitMimeTag(template string) (bare string, mime string) {
	open := strings.LastIndexByte(template, '<')
	if open < 0 || !strings.HasSuffix(template, ">") {
		return template, ""
	}

	return template[:open], template[open+1 : len(template)-1]
}

// MatchTemplate matches path against template segment by segment. A literal
// segment must match exactly; a segment of the form "{name}" matches any
// single non-empty segment and binds name to it. A trailing "<mime/type>"
// tag on template's final segment is stripped before matching and returned
// as mimeType (empty if the template carries no such tag).
//
// A nil matches return means "no match". A non-nil map (possibly empty, for
// a template with no "{name}" placeholders) means the path matched.
func MatchTemplate(path, template string) (matches map[string]string, mimeType string) {
	bare, mime := splitMimeTag(template)

	pathSegs := strings.Split(path, "/")
	tmplSegs := strings.Split(bare, "/")

	if len(pathSegs) != len(tmplSegs) {
		return nil, ""
	}

	m := map[string]string{}
	for i, seg := range tmplSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			if pathSegs[i] == "" {
				return nil, ""
			}
			m[name] = pathSegs[i]
		} else if seg != pathSegs[i] {
			return nil, ""
		}
	}

	return m, mime
}
