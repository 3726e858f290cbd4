package webserve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the application-supplied, mutable set of configurations for an
// embedded server. ConfigToConn flattens a Config (plus the shared SSE
// registries it is handed) into the read-only ConnConfig every connection
// dispatches against.
type Config struct {
	Hosts         []string `mapstructure:"hosts"`
	Port          uint16   `mapstructure:"port"`
	ServerInfo    string   `mapstructure:"server_info"`
	ResourcesRoot string   `mapstructure:"resources_root"`

	Routes []Route          `mapstructure:"-"`
	Views  map[string]Handler `mapstructure:"-"`
	SSE    map[string]SSEOpener `mapstructure:"-"`

	Settings map[string]string `mapstructure:"settings"`

	// Missing serves the fallback 404 view. Defaults to a handler that
	// loads "not-found.html".
	Missing Handler `mapstructure:"-"`

	// StaticHandler serves a sandboxed, validated static resource.
	// Defaults to a handler that loads the resolved path as binary.
	StaticHandler Handler `mapstructure:"-"`

	LoadResource  func(path string) ([]byte, error) `mapstructure:"-"`
	ValidResource func(path string) bool            `mapstructure:"-"`

	StaticTypeTable map[string]string `mapstructure:"-"`

	// ReadError is a Mustache template (as text, not a path) rendered
	// with {{request-path}} when a resource fails to load.
	ReadError string `mapstructure:"read_error"`
}

// InitializeConfig returns a Config with empty route/view/sse tables, a
// built-in "missing" handler that resolves "not-found.html", and the
// default static-resource pipeline.
func InitializeConfig() Config {
	return Config{
		ServerInfo:      "webserve",
		Views:           map[string]Handler{},
		SSE:             map[string]SSEOpener{},
		Settings:        map[string]string{},
		Missing:         notFoundHandler,
		StaticHandler:   staticHandler,
		StaticTypeTable: DefaultStaticTypeTable(),
		ReadError:       `<html><body>Could not read URL {{request-path}}</body></html>`,
	}
}

func notFoundHandler(_ *ConnConfig, _ *Request, res Response) Response {
	res.Template = "not-found.html"
	return res
}

func staticHandler(cfg *ConnConfig, req *Request, res Response) Response {
	path := ResolvePath(cfg.ResourcesRoot, req.Path)
	b, err := cfg.LoadResource(path)
	if err != nil {
		res.Status = "403 Forbidden"
		return res
	}
	res.Body = BinaryBody(b)
	return res
}

// LoadConfigFile reads a JSON, TOML, or YAML file (selected by extension)
// into a plain map and decodes it into cfg via mapstructure.
func LoadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m := map[string]interface{}{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	default:
		return fmt.Errorf("webserve: unsupported configuration file extension: %s", ext)
	}
	if err != nil {
		return err
	}

	return mapstructure.Decode(m, cfg)
}

// ConnConfig is the per-connection, read-only materialization of a Config.
// Every field is safe to read concurrently once built; none are mutated
// after ConfigToConn returns, except the shared SSE task registry, which is
// guarded internally (see sse.go).
type ConnConfig struct {
	Hosts         []string
	Port          uint16
	ServerInfo    string
	ResourcesRoot string

	RouteList  []Route
	ViewsTable map[string]Handler

	SSEOpeners map[string]SSEOpener
	sseTasks   *sseRegistry
	SSEPush    PushChan

	StaticHandler Handler
	Missing       Handler

	LoadResource  func(path string) ([]byte, error)
	ValidResource func(path string) bool

	StaticTypeTable map[string]string
	Settings        map[string]string
	ReadError       string

	Logger *Logger
}

// ConfigToConn flattens config's Routes and Views into RouteList and
// ViewsTable (an unmatched route is logged and dropped; duplicate view keys
// last-write-wins), installs defaults for anything config left nil, and
// attaches the per-connection ssePush channel plus the shared, cross-
// connection SSE task registry.
func ConfigToConn(config *Config, registry *sseRegistry, ssePush PushChan, logger *Logger) *ConnConfig {
	root := config.ResourcesRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = filepath.Clean(abs)
	} else {
		root = filepath.Clean(root)
	}

	cc := &ConnConfig{
		Hosts:           config.Hosts,
		Port:            config.Port,
		ServerInfo:      config.ServerInfo,
		ResourcesRoot:   root,
		SSEOpeners:      config.SSE,
		sseTasks:        registry,
		SSEPush:         ssePush,
		StaticHandler:   config.StaticHandler,
		Missing:         config.Missing,
		LoadResource:    config.LoadResource,
		ValidResource:   config.ValidResource,
		StaticTypeTable: config.StaticTypeTable,
		Settings:        config.Settings,
		ReadError:       config.ReadError,
		Logger:          logger,
	}

	if cc.StaticTypeTable == nil {
		cc.StaticTypeTable = DefaultStaticTypeTable()
	}
	if cc.Settings == nil {
		cc.Settings = map[string]string{}
	}
	if cc.StaticHandler == nil {
		cc.StaticHandler = staticHandler
	}
	if cc.Missing == nil {
		cc.Missing = notFoundHandler
	}
	if cc.LoadResource == nil || cc.ValidResource == nil {
		cache := NewResourceCache(root, cc.StaticTypeTable, logger, cc.Settings["minify"] == "true")
		if cc.LoadResource == nil {
			cc.LoadResource = cache.Load
		}
		if cc.ValidResource == nil {
			cc.ValidResource = cache.Valid
		}
	}

	routeList := make([]Route, 0, len(config.Routes))
	for _, r := range config.Routes {
		if _, ok := config.Views[r.ViewKey]; !ok {
			if logger != nil {
				logger.Warnf("no view registered for route [%s %s] (key %q); dropping", r.Method, r.Template, r.ViewKey)
			}
			continue
		}

		mime := r.MimeType
		if mime == "" {
			mime = "text/html"
		}
		routeList = append(routeList, Route{Method: r.Method, Template: r.Template, ViewKey: r.ViewKey, MimeType: mime})
	}
	cc.RouteList = routeList

	viewsTable := make(map[string]Handler, len(config.Views))
	for k, v := range config.Views {
		viewsTable[k] = v
	}
	cc.ViewsTable = viewsTable

	return cc
}
