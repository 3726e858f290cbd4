package webserve

// Request is the dispatcher's view of an inbound request: the parsed
// HTTPRequest plus everything route matching and query parsing derive from
// it.
type Request struct {
	Version    string
	Method     string
	LocalAddr  string
	RemoteAddr string
	Path       string
	Matches    map[string]string
	Params     []QueryParam
	Headers    map[string]string
	Body       string
}

// Param returns the first query param value for key, and whether it was
// present.
func (r *Request) Param(key string) (string, bool) {
	for _, p := range r.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// TemplateContext is a Mustache rendering context: a mapping from name to a
// Mustache value (string, bool, number, nested map, or slice thereof).
type TemplateContext map[string]interface{}

// Response is what a Handler returns. If Template is empty, Body is
// authoritative and is written as-is. If Template is non-empty, Body is
// discarded and replaced by the rendered contents of that template resource,
// expanded against Context.
type Response struct {
	Status  string
	Headers Headers
	Body    Body
	// Template names a resource (relative to ResourcesRoot) to load and
	// render with Context in place of Body. Empty means "Body is final".
	Template string
	Context  TemplateContext
}

// Handler serves a routed view, a static resource, or an error page. It
// receives the per-connection configuration and the request (with any route
// matches bound) and returns a new Response built from the one it was given.
type Handler func(cfg *ConnConfig, req *Request, res Response) Response
