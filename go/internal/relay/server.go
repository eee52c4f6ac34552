package relay

import (
	"net/http"
	"time"

	"connectrpc.com/grpcreflect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServerOptions configures the relay HTTP surface
type ServerOptions struct {
	Addr           string
	AllowedOrigins []string
	// Metrics is mounted on /metrics when set
	Metrics http.Handler
}

// NewServer builds the relay HTTP server. The handler speaks HTTP/1.1 and
// cleartext HTTP/2 so gRPC clients can reach SessionService directly.
func NewServer(service *Service, opts ServerOptions) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(service, opts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func NewHandler(service *Service, opts ServerOptions) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})

	service.RegisterRoutes(mux)

	// Setup reflection for grpcui/grpcurl
	setupReflection(mux)

	setupHealthCheck(mux)

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	handler := c.Handler(mux)
	return h2c.NewHandler(handler, &http2.Server{})
}

func setupReflection(mux *http.ServeMux) {
	if _, err := SessionServiceDescriptor(); err != nil {
		log.Warn().Err(err).Msg("gRPC reflection disabled")
		return
	}
	reflector := grpcreflect.NewStaticReflector(SessionServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

// OriginChecker accepts WebSocket upgrades from the given origins. "*"
// allows any origin, and requests without an Origin header are always
// accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
