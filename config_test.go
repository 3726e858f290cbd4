package webserve

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeConfigDefaults(t *testing.T) {
	cfg := InitializeConfig()

	if cfg.Missing == nil {
		t.Error("expected a default Missing handler")
	}
	if cfg.StaticHandler == nil {
		t.Error("expected a default StaticHandler")
	}
	if cfg.StaticTypeTable == nil || cfg.StaticTypeTable[".html"] != "text/html" {
		t.Error("expected a populated default static type table")
	}
	if cfg.ReadError == "" {
		t.Error("expected a default ReadError template")
	}
}

func TestConfigToConnFlattensRoutesAndViews(t *testing.T) {
	root := t.TempDir()
	config := InitializeConfig()
	config.ResourcesRoot = root
	config.Routes = []Route{
		{Method: "GET", Template: "/hello/{name}", ViewKey: "greet"},
		{Method: "GET", Template: "/orphan", ViewKey: "missing-view"},
	}
	config.Views = map[string]Handler{
		"greet": func(_ *ConnConfig, _ *Request, res Response) Response { return res },
	}

	logger := NewLogger()
	cc := ConfigToConn(&config, newSSERegistry(), make(PushChan), logger)

	if len(cc.RouteList) != 1 {
		t.Fatalf("RouteList = %v, want exactly the route with a matching view", cc.RouteList)
	}
	if cc.RouteList[0].ViewKey != "greet" {
		t.Errorf("ViewKey = %q", cc.RouteList[0].ViewKey)
	}
	if cc.RouteList[0].MimeType != "text/html" {
		t.Errorf("MimeType default = %q, want text/html", cc.RouteList[0].MimeType)
	}
	if _, ok := cc.ViewsTable["greet"]; !ok {
		t.Error("expected greet to be present in ViewsTable")
	}
}

func TestConfigToConnResolvesResourcesRootToAbsolute(t *testing.T) {
	root := t.TempDir()
	config := InitializeConfig()
	config.ResourcesRoot = root

	cc := ConfigToConn(&config, newSSERegistry(), make(PushChan), nil)

	if !filepath.IsAbs(cc.ResourcesRoot) {
		t.Errorf("ResourcesRoot = %q, want absolute", cc.ResourcesRoot)
	}
}

func TestConfigToConnInstallsResourceCacheWhenUnset(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	config := InitializeConfig()
	config.ResourcesRoot = root

	cc := ConfigToConn(&config, newSSERegistry(), make(PushChan), nil)

	if cc.LoadResource == nil || cc.ValidResource == nil {
		t.Fatal("expected a default resource cache to be installed")
	}
	if !cc.ValidResource(filepath.Join(cc.ResourcesRoot, "a.txt")) {
		t.Error("expected the written file to be valid")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	contents := `{"port": 9090, "server_info": "test/1.0", "resources_root": "/srv/www"}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := InitializeConfig()
	if err := LoadConfigFile(path, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.ServerInfo != "test/1.0" {
		t.Errorf("ServerInfo = %q", cfg.ServerInfo)
	}
	if cfg.ResourcesRoot != "/srv/www" {
		t.Errorf("ResourcesRoot = %q", cfg.ResourcesRoot)
	}
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(path, []byte("port=9090"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := InitializeConfig()
	if err := LoadConfigFile(path, &cfg); err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}

func TestStaticHandlerLoadsResolvedPath(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file.bin"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	cache := NewResourceCache(root, DefaultStaticTypeTable(), nil, false)
	cc := &ConnConfig{ResourcesRoot: root, LoadResource: cache.Load}
	req := &Request{Path: "/file.bin"}

	res := staticHandler(cc, req, Response{Status: "200 OK"})
	if string(res.Body.Bytes()) != string([]byte{1, 2, 3}) {
		t.Errorf("body = %v", res.Body.Bytes())
	}
}

func TestStaticHandlerFailureDowngradesTo403(t *testing.T) {
	root := t.TempDir()
	cache := NewResourceCache(root, DefaultStaticTypeTable(), nil, false)
	cc := &ConnConfig{ResourcesRoot: root, LoadResource: cache.Load}
	req := &Request{Path: "/missing.bin"}

	res := staticHandler(cc, req, Response{Status: "200 OK"})
	if res.Status != "403 Forbidden" {
		t.Errorf("status = %q, want 403 Forbidden", res.Status)
	}
}
