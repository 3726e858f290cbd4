package webserve

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
)

// Start binds a TCP listener on config.Port and services connections until
// the listener fails. Each accepted connection is handled on its own
// goroutine by serveConn, mirroring the original's per-connection task:
// everything through writing the response (or, for an owning SSE request,
// through the lifetime of the stream) runs on that one goroutine.
//
// Per the non-goals (no persistent connection reuse, no pipelining), each
// connection services exactly one request.
func Start(config *Config) error {
	logger := NewLogger()
	logger.Enabled = config.Settings["debug"] == "true"

	registry := newSSERegistry()

	addr := fmt.Sprintf(":%d", config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	logger.Infof("%s listening on %s", config.ServerInfo, addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Errorf("accept error: %v", err)
			return err
		}
		go serveConn(conn, config, registry, logger)
	}
}

// serveConn reads exactly one request off conn, dispatches it, writes the
// response, and — if the request opened an SSE stream that this connection
// now owns — keeps the connection open to relay chunks until the stream
// closes. A request that only refreshed an existing stream is done once its
// response is written.
func serveConn(conn net.Conn, config *Config, registry *sseRegistry, logger *Logger) {
	defer conn.Close()

	push := make(PushChan, 16)
	cfg := ConfigToConn(config, registry, push, logger)

	reader := bufio.NewReader(conn)
	raw, err := readRequestBytes(reader)
	if err != nil {
		conn.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
		return
	}

	hreq, perr := ParseRequest(raw)
	if perr != nil {
		logger.Warnf("parse error: %v", perr)
		conn.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
		return
	}

	// Request.LocalAddr is a bare host: the template pipeline appends the
	// configured port itself when it builds "base-path".
	local := conn.LocalAddr().String()
	if host, _, err := net.SplitHostPort(local); err == nil {
		local = host
	}
	remote := conn.RemoteAddr().String()
	path, _ := ParseURL(hreq.URL)

	header, body, control, streaming := processRequestFull(cfg, hreq, local, remote)

	if _, err := conn.Write([]byte(header)); err != nil {
		return
	}
	if _, err := body.WriteTo(conn); err != nil {
		return
	}

	if !streaming {
		return
	}

	streamSSE(conn, cfg, path, control, push)
}

// readRequestBytes reads off r until the CRLFCRLF that terminates the
// headers. Requests carry no body (non-goals), so that terminator is the
// end of the message.
func readRequestBytes(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if err != nil {
			return nil, err
		}
		if b := buf.Bytes(); len(b) >= 4 && string(b[len(b)-4:]) == "\r\n\r\n" {
			return b, nil
		}
	}
}

// streamSSE relays push-task frames to conn as HTTP chunks until push is
// closed (the push task saw CloseEvent and shut down cleanly), or until a
// write to conn fails, in which case it converts the dead connection into a
// CloseEvent on control — the push task's own cue to unregister and exit.
func streamSSE(conn net.Conn, cfg *ConnConfig, path string, control ControlChan, push PushChan) {
	defer cfg.sseTasks.release(path, control)

	for frame := range push {
		if _, err := conn.Write(ChunkFrame(frame)); err != nil {
			select {
			case control <- ControlEvent{Kind: CloseEvent}:
			default:
			}
			return
		}
	}

	conn.Write(ChunkTerminator())
}
