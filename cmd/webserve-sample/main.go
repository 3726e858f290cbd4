// Command webserve-sample is a small reference server: a home page, a
// parameterized greeting route, an admin-gated shutdown route, and an
// /uptime Server-Sent Events feed that counts seconds (or minutes) since
// the process started.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	webserve "github.com/riverrun/webserve"
)

const version = "0.1"

func usage() {
	fmt.Printf("webserve-sample %s - sample webserve server\n\n", version)
	fmt.Println("./webserve-sample [options] --root=<dir>")
	fmt.Println("--admin      allows web clients to shut the server down")
	fmt.Println("-h, --help   prints this message and exits")
	fmt.Println("--root=DIR   path to the directory containing html files")
	fmt.Println("--version    prints the server version number and exits")
}

func main() {
	var (
		root        string
		admin       bool
		showHelp    bool
		showVersion bool
	)

	flag.StringVar(&root, "root", "", "path to the directory containing html files")
	flag.BoolVar(&admin, "admin", false, "allows web clients to shut the server down")
	flag.BoolVar(&showHelp, "h", false, "prints this message and exits")
	flag.BoolVar(&showHelp, "help", false, "prints this message and exits")
	flag.BoolVar(&showVersion, "version", false, "prints the server version number and exits")
	flag.Parse()

	if showHelp {
		usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("webserve-sample %s\n", version)
		os.Exit(0)
	}
	if root == "" {
		fmt.Fprintln(os.Stderr, "Expected a --root argument pointing to the html pages.")
		os.Exit(1)
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		fmt.Fprintf(os.Stderr, "'%s' does not point to a directory.\n", root)
		os.Exit(1)
	}

	tick := make(chan struct{})
	go func() {
		for {
			time.Sleep(time.Second)
			tick <- struct{}{}
		}
	}()
	uptime := webserve.NewStateBroadcaster(tick)

	config := webserve.InitializeConfig()
	config.Hosts = []string{"localhost"}
	config.Port = 8088
	config.ServerInfo = "sample webserve server " + version
	config.ResourcesRoot = root
	config.Settings = map[string]string{"debug": "true"}

	config.Routes = []webserve.Route{
		{Method: "GET", Template: "/", ViewKey: "home"},
		{Method: "GET", Template: "/shutdown", ViewKey: "shutdown"},
		{Method: "GET", Template: "/hello/{name}", ViewKey: "greeting"},
	}
	config.Views = map[string]webserve.Handler{
		"home":     homeView(admin),
		"shutdown": shutdownView(admin),
		"greeting": greetingView,
	}
	config.SSE = map[string]webserve.SSEOpener{
		"/uptime": uptimeOpener(uptime),
	}

	if err := webserve.Start(&config); err != nil {
		fmt.Fprintf(os.Stderr, "webserve-sample: %v\n", err)
		os.Exit(1)
	}
}

func homeView(admin bool) webserve.Handler {
	return func(_ *webserve.ConnConfig, _ *webserve.Request, res webserve.Response) webserve.Response {
		res.Context["admin"] = admin
		res.Template = "home.html"
		return res
	}
}

func shutdownView(admin bool) webserve.Handler {
	return func(_ *webserve.ConnConfig, _ *webserve.Request, res webserve.Response) webserve.Response {
		if !admin {
			res.Status = "403 Forbidden"
			return res
		}
		fmt.Println("received shutdown request")
		os.Exit(0)
		return res
	}
}

func greetingView(_ *webserve.ConnConfig, req *webserve.Request, res webserve.Response) webserve.Response {
	res.Context["user-name"] = req.Matches["name"]
	res.Template = "hello.html"
	return res
}

// uptimeOpener adapts a StateBroadcaster into an SSEOpener: each connection
// that opens /uptime gets its own listener key and its own push task, torn
// down (RemoveListener) when the task sees a CloseEvent.
func uptimeOpener(broadcaster *webserve.StateBroadcaster) webserve.SSEOpener {
	return func(cfg *webserve.ConnConfig, req *webserve.Request) webserve.ControlChan {
		units, _ := req.Param("units")
		seconds := units == "s"

		notify := make(chan int, 1)
		key := fmt.Sprintf("uptime-%p", notify)
		broadcaster.AddListener(key, notify)

		render := func(value int) string {
			if !seconds {
				value = value / 60
			}
			return fmt.Sprintf("retry: 5000\ndata: %d\n\n", value)
		}

		return webserve.StartPushTask(cfg.SSEPush, notify, render, func() {
			broadcaster.RemoveListener(key)
		})
	}
}
