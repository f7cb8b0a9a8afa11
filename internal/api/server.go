package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/broker"
	"github.com/patrickwarner/adbroker/internal/geoip"
	"github.com/patrickwarner/adbroker/internal/middleware"
	"github.com/patrickwarner/adbroker/internal/observability"
	"github.com/patrickwarner/adbroker/internal/registry"
)

var tracer = otel.Tracer("adbroker")

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger   *zap.Logger
	Registry *registry.Registry
	Broker   *broker.Broker
	GeoIP    *geoip.GeoIP
	Metrics  observability.MetricsRegistry
	// DebugTrace adds the auction trace to every /request-bids response,
	// not only those asking for it with ?debug=1.
	DebugTrace bool
	// DegradedStatus is the status code of /request-bids responses when the
	// bid source failed or returned unusable bids.
	DegradedStatus int
}

// NewServer constructs a Server. geo may be nil.
func NewServer(logger *zap.Logger, reg *registry.Registry, b *broker.Broker, geo *geoip.GeoIP,
	metrics observability.MetricsRegistry, debug bool, degradedStatus int) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if degradedStatus < 100 || degradedStatus > 599 {
		degradedStatus = http.StatusInternalServerError
	}
	return &Server{
		Logger:         logger,
		Registry:       reg,
		Broker:         b,
		GeoIP:          geo,
		Metrics:        metrics,
		DebugTrace:     debug,
		DegradedStatus: degradedStatus,
	}
}

// Router returns the mux with every broker route registered. CORS and the
// trace-aware logger are applied to all of them.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/ad-unit", s.AddAdUnitHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ad-units", s.ListAdUnitsHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ad-units/{id}", s.GetAdUnitHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/request-bids", s.RequestBidsHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/test/bid", s.TestBidHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes v with the given status. Encoding errors are logged; the
// header has been sent by then.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", zap.Error(err))
	}
}
