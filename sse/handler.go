package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/hvacform/logger"
)

// KeepAlive is the interval of comment lines that keep proxies from
// closing an idle stream.
var KeepAlive = 30 * time.Second

// Serve streams the events of topic to w until the client disconnects,
// the topic is closed or the hub stops.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, topic string) {
	log := logger.WithContext(r.Context()).WithComponent("sse")
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported", map[string]interface{}{"client_id": clientID})
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not clear write deadline", map[string]interface{}{"error": err.Error()})
	}

	client := NewClient(clientID, topic)
	if !hub.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write(w, Message{Event: EventConnected, Data: []byte(fmt.Sprintf(`{"client_id":%q,"topic":%q}`, clientID, topic))})
	flusher.Flush()
	log.Debug("stream opened", map[string]interface{}{"client_id": clientID, "topic": topic})

	keepAlive := time.NewTicker(KeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Debug("stream client gone", map[string]interface{}{"client_id": clientID})
			return
		case m, ok := <-client.Events():
			if !ok {
				return
			}
			write(w, m)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func write(w http.ResponseWriter, m Message) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Event, m.Data)
}
