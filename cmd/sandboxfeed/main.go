// cmd/sandboxfeed runs a synthetic market data server speaking the same
// wire protocol as the real feed (spec §6), for exercising the ingestor and
// worker pipeline without exchange credentials.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type candleFrame struct {
	T int64  `json:"t"`
	T2 int64 `json:"T"`
	S  string `json:"s"`
	I  string `json:"i"`
	O  string `json:"o"`
	H  string `json:"h"`
	L  string `json:"l"`
	C  string `json:"c"`
	V  string `json:"v"`
}

type symbolState struct {
	symbol   string
	interval string
	price    float64
	periodMs int64
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[sandboxfeed] upgrade error: %v", err)
			return
		}
		log.Printf("[sandboxfeed] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[sandboxfeed] client disconnected: %s", r.RemoteAddr)
		}()

		// Drain (and ignore) subscribe frames; the sandbox broadcasts to every
		// connected client regardless of what it subscribed to.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// walkPrice applies a small random walk, staying positive.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.4 - 0.2) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func runGenerator(h *hub, symbols []*symbolState) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for now := range ticker.C {
		for _, sym := range symbols {
			open := sym.price
			sym.price = walkPrice(sym.price)
			high, low := open, sym.price
			if sym.price > open {
				high, low = sym.price, open
			}
			start := now.Truncate(time.Duration(sym.periodMs) * time.Millisecond)
			frame := candleFrame{
				T:  start.UnixMilli(),
				T2: start.Add(time.Duration(sym.periodMs) * time.Millisecond).UnixMilli(),
				S:  sym.symbol,
				I:  sym.interval,
				O:  formatPrice(open),
				H:  formatPrice(high),
				L:  formatPrice(low),
				C:  formatPrice(sym.price),
				V:  formatPrice(float64(rand.Intn(1000) + 1)),
			}
			b, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[sandboxfeed] starting synthetic candle feed")

	addr := envOrDefault("SANDBOX_FEED_ADDR", ":9100")
	symbolsEnv := envOrDefault("SYMBOLS", "BTC,ETH")
	interval := envOrDefault("SANDBOX_FEED_INTERVAL", "1m")

	var symbols []*symbolState
	for _, s := range strings.Split(symbolsEnv, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		symbols = append(symbols, &symbolState{
			symbol:   s,
			interval: interval,
			price:    startingPrice(s),
			periodMs: intervalToMs(interval),
		})
	}
	if len(symbols) == 0 {
		log.Fatal("[sandboxfeed] no symbols configured")
	}

	h := newHub()
	go runGenerator(h, symbols)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"healthy","service":"sandboxfeed"}`)
	})

	log.Printf("[sandboxfeed] listening on %s (ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[sandboxfeed] server error: %v", err)
	}
}

func startingPrice(symbol string) float64 {
	switch symbol {
	case "BTC":
		return 60000
	case "ETH":
		return 3000
	default:
		return 100
	}
}

func intervalToMs(interval string) int64 {
	switch interval {
	case "1s":
		return 1000
	case "1m":
		return 60_000
	case "5m":
		return 5 * 60_000
	case "15m":
		return 15 * 60_000
	case "1h":
		return 60 * 60_000
	default:
		return 60_000
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
