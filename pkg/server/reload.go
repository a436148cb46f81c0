package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/macropower/stitch/pkg/invalidate"
	"github.com/macropower/stitch/pkg/log"
)

// ReloadPath is where browsers subscribe to reload notifications.
const ReloadPath = "/__stitch/reload"

const reloadScript = `<script id="__stitch_reload">` +
	`(function(){var es=new EventSource("` + ReloadPath + `");` +
	`es.addEventListener("reload",function(){location.reload()});` +
	`es.addEventListener("error",function(e){if(e.data){console.error("stitch:",e.data)}});` +
	`})();</script>`

type message struct {
	event string
	data  string
}

// Hub fans reload notifications out to connected browsers.
type Hub struct {
	subs map[chan message]struct{}
	mu   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan message]struct{})}
}

func (h *Hub) subscribe() chan message {
	ch := make(chan message, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

func (h *Hub) unsubscribe(ch chan message) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Reload tells every connected browser to reload.
func (h *Hub) Reload() {
	h.send(message{event: "reload", data: "1"})
}

func (h *Hub) send(msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Run forwards controller events to browsers until ctx is done or events is
// closed.
func (h *Hub) Run(ctx context.Context, events <-chan invalidate.Event) {
	logger := log.WithContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-events:
			if !ok {
				return
			}

			switch e := evt.(type) {
			case invalidate.EventReload:
				logger.InfoContext(ctx, "reloading browsers",
					slog.String("path", e.Path),
					slog.Int("clients", h.Clients()),
				)
				h.Reload()

			case invalidate.EventError:
				h.send(message{event: "error", data: oneLine(e.Err.Error())})
			}
		}
	}
}

// ServeHTTP streams notifications as Server-Sent Events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte("event: ready\ndata: 1\n\n"))
	flusher.Flush()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			_, _ = w.Write([]byte("event: " + msg.event + "\ndata: " + msg.data + "\n\n"))
			flusher.Flush()
		}
	}
}

// InjectReloadScript adds the reload client to document, before the last
// </body> if there is one.
func InjectReloadScript(document string) string {
	if strings.Contains(document, `id="__stitch_reload"`) {
		return document
	}

	i := lastIndexASCIIFold(document, "</body>")
	if i < 0 {
		return document + reloadScript
	}

	return document[:i] + reloadScript + document[i:]
}

// lastIndexASCIIFold returns the byte offset of the last match of the
// lowercase ASCII pattern in s, ignoring ASCII case only. Offsets index s
// itself, so multibyte text before the match cannot shift them.
func lastIndexASCIIFold(s, pattern string) int {
	for i := len(s) - len(pattern); i >= 0; i-- {
		if hasPrefixASCIIFold(s[i:], pattern) {
			return i
		}
	}

	return -1
}

func hasPrefixASCIIFold(s, pattern string) bool {
	for j := range len(pattern) {
		c := s[j]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}

		if c != pattern[j] {
			return false
		}
	}

	return true
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}
