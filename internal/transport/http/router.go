package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"

	"live-quiz-service/internal/app"
)

const (
	defaultQRSize = 320
	maxQRSize     = 1024
)

// Options configures the HTTP surface.
type Options struct {
	WriteTimeout time.Duration
	// PublicURL is the base URL players reach the service on. When empty it
	// is derived from each request.
	PublicURL string
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Router serves player, host and operational endpoints.
type Router struct {
	*httprouter.Router
	ws *WSHandler
}

// CloseConnections closes the websocket players' connections.
func (r *Router) CloseConnections() {
	r.ws.CloseConnections()
}

// NewRouter wires player, host and operational endpoints.
func NewRouter(service *app.QuizService, opts Options) *Router {
	mux := httprouter.New()

	ws := NewWSHandler(service.Session(), opts.WriteTimeout)
	mux.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)

	NewHostHandler(service).register(mux)

	mux.GET("/join/qr", qrHandler(opts.PublicURL))
	mux.GET("/healthz", healthz)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Router{Router: mux, ws: ws}
}

func healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// qrHandler renders a PNG QR code with the websocket URL players join on.
func qrHandler(publicURL string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		size := defaultQRSize
		if raw := r.URL.Query().Get("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxQRSize {
				http.Error(w, "invalid size", http.StatusBadRequest)
				return
			}
			size = n
		}

		png, err := qrcode.Encode(joinURL(r, publicURL), qrcode.Medium, size)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func joinURL(r *http.Request, publicURL string) string {
	base := strings.TrimSuffix(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
