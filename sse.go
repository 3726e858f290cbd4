package webserve

import "sync"

// SSEEventKind distinguishes the two control messages a running push task
// can receive.
type SSEEventKind int

const (
	RefreshEvent SSEEventKind = iota
	CloseEvent
)

// ControlEvent is a message sent to a running push task: RefreshEvent asks
// it to immediately re-send its last frame (so a reconnecting client gets
// current state without waiting for the next tick); CloseEvent asks it to
// unregister and terminate.
type ControlEvent struct {
	Kind SSEEventKind
}

// ControlChan is the channel a running push task listens on for ControlEvents.
type ControlChan chan ControlEvent

// PushChan carries formatted SSE frames (not yet chunk-framed) from a
// connection's push task(s) to that connection's writer goroutine, which
// wraps each one with ChunkFrame before writing it.
type PushChan chan []byte

// SSEOpener handles the first GET against a path not yet backed by a running
// push task: it spawns that task (wiring it to cfg.SSEPush so its frames
// reach this connection's writer) and returns the task's ControlChan, which
// is registered in the shared task registry under the request path.
type SSEOpener func(cfg *ConnConfig, req *Request) ControlChan

// sseRegistry is the one deliberately shared, mutex-guarded piece of state
// in an otherwise lock-free core: a map from request path to the ControlChan
// of whichever connection's push task currently backs that path.
//
// The distilled design treats sse_tasks as per-connection, which is right
// for a single-owner actor model where a task has one long-lived handle.
// Go's goroutine-per-connection model has no such handle a second, unrelated
// connection could reach into, so a second GET on an already-open path (to
// send it a RefreshEvent) needs a lookup both connections can see. This
// registry is that lookup; every other piece of per-connection state in
// ConnConfig stays connection-local and is never mutated after
// ConfigToConn builds it.
type sseRegistry struct {
	mu    sync.Mutex
	tasks map[string]ControlChan
}

func newSSERegistry() *sseRegistry {
	return &sseRegistry{tasks: map[string]ControlChan{}}
}

func (r *sseRegistry) lookup(path string) (ControlChan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.tasks[path]
	return c, ok
}

func (r *sseRegistry) store(path string, control ControlChan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[path] = control
}

// release removes path's entry, but only if it still points at control — a
// stale release from a task that already lost ownership must not clobber a
// newer one.
func (r *sseRegistry) release(path string, control ControlChan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.tasks[path]; ok && c == control {
		delete(r.tasks, path)
	}
}

// closeAll sends a CloseEvent to every task currently registered and empties
// the registry.
func (r *sseRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, control := range r.tasks {
		select {
		case control <- ControlEvent{Kind: CloseEvent}:
		default:
		}
		delete(r.tasks, path)
	}
}

// CloseAll tells every push task registered on cfg's shared registry to end
// its stream, and empties the registry. Nothing in this package calls it;
// Start has no shutdown path.
func CloseAll(cfg *ConnConfig) {
	if cfg == nil || cfg.sseTasks == nil {
		return
	}
	cfg.sseTasks.closeAll()
}

// processSSE implements §4.F Opening, built the same way the original's
// process_sse is: compose an ordinary initial Response via
// MakeInitialResponse, then layer the two SSE-specific headers on top.
// ProcessRequest frames the result exactly like any other response; only
// the connection layer needs the extra ControlChan/owner values, to know
// whether it must keep relaying cfg.SSEPush after writing this response.
//
// If req.Path already has a running push task, that task is sent a
// RefreshEvent (best-effort: a full control channel drops it rather than
// blocking this request) and the response is the same fixed 200 — owner is
// false, since this connection does not hold the task's ControlChan.
//
// If req.Path has no running task, cfg.SSEOpeners[req.Path] is invoked to
// spawn one; on success the returned ControlChan is registered and owner is
// true — the connection must now relay cfg.SSEPush as chunks until the task
// closes it, then call cfg.sseTasks.release(req.Path, control).
//
// If neither a running task nor an opener exists for req.Path, the response
// is a 404 with Content-Type text/event-stream and owner is false.
func processSSE(cfg *ConnConfig, req *Request) (res Response, control ControlChan, owner bool) {
	if existing, ok := cfg.sseTasks.lookup(req.Path); ok {
		select {
		case existing <- ControlEvent{Kind: RefreshEvent}:
		default:
		}
		return sseResponse(cfg, req, "200", "OK", "text/event-stream; charset=utf-8"), nil, false
	}

	opener, ok := cfg.SSEOpeners[req.Path]
	if !ok {
		return sseResponse(cfg, req, "404", "Not Found", "text/event-stream"), nil, false
	}

	control = opener(cfg, req)
	cfg.sseTasks.store(req.Path, control)

	return sseResponse(cfg, req, "200", "OK", "text/event-stream; charset=utf-8"), control, true
}

func sseResponse(cfg *ConnConfig, req *Request, code, mesg, mime string) Response {
	res := MakeInitialResponse(cfg, req, code, mesg, mime)
	res.Headers.Set("Transfer-Encoding", "chunked")
	res.Headers.Set("Cache-Control", "no-cache")
	res.Body = StringBody("\n\n")
	return res
}

// ChunkFrame wraps an already-formatted SSE frame ("retry: ...\ndata:
// ...\n\n") in HTTP chunked-transfer framing: hex length, CRLF, payload,
// CRLF. The connection writer calls this for every frame a push task emits
// on PushChan.
func ChunkFrame(frame []byte) []byte {
	return CompoundBody(
		StringBody(hexLen(len(frame)) + "\r\n"),
		BinaryBody(frame),
		StringBody("\r\n"),
	).Bytes()
}

// ChunkTerminator is the final zero-length chunk that ends a chunked stream.
func ChunkTerminator() []byte {
	return []byte("0\r\n\r\n")
}

// StartPushTask spawns the generic per-connection push-task goroutine: it
// selects over notify (raw state updates, e.g. a StateBroadcaster listener
// channel) and its own ControlChan, rendering each notification through
// render and writing the result to push, until a CloseEvent — at which
// point it runs onClose (typically RemoveListener on whatever registrar fed
// notify), closes push, and returns.
//
// This generalizes the opener-spawned task the sample server's uptime_sse
// hand-writes; an SSEOpener built from it only needs to supply notify,
// render, and onClose.
//
// TODO: some clients don't close the underlying TCP connection when an
// EventSource is abandoned client-side, so a task can outlive any listener.
// There's no timeout here to reap it.
func StartPushTask(push PushChan, notify <-chan int, render func(value int) string, onClose func()) ControlChan {
	control := make(ControlChan, 8)

	go func() {
		last := ""
		for {
			select {
			case v, ok := <-notify:
				if !ok {
					return
				}
				last = render(v)
				select {
				case push <- []byte(last):
				default:
				}

			case ev := <-control:
				switch ev.Kind {
				case RefreshEvent:
					if last != "" {
						select {
						case push <- []byte(last):
						default:
						}
					}
				case CloseEvent:
					if onClose != nil {
						onClose()
					}
					close(push)
					return
				}
			}
		}
	}()

	return control
}

func hexLen(n int) string {
	const hexDigits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hexDigits[n%16]
		n /= 16
	}
	return string(buf[i:])
}
