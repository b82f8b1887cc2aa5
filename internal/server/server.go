package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"itinerary-optimizer/internal/cache"
	"itinerary-optimizer/internal/config"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/handlers"
	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/sqlite"
)

// requestTimeout bounds a single request, optimization included
const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         *sqlite.Store
	redis      *redis.Client
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Printf("Initializing data store: path=%s", cfg.DBPath)
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	var redisClient *redis.Client
	var resultCache *cache.ResultCache
	if cfg.RedisURL != "" {
		log.Printf("Connecting to result cache...")
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		resultCache = cache.NewResultCache(redisClient, cfg.CacheTTL)
	} else {
		log.Printf("REDIS_URL not set, result cache disabled")
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.Geocoding())
	opt := optimizer.New(nil, nil, cfg.Optimizer)

	handler := &handlers.Handler{
		DB:        db,
		Geocoder:  geocoder,
		Optimizer: opt,
		Enricher:  enrich.New(geocoder, db.GeocodeCache(), nil, cfg.GeocoderConcurrency),
		Cache:     resultCache,
	}

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewRouter(handler, cfg.RateLimitPerMinute),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		redis:      redisClient,
		addr:       cfg.ServerAddr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("[ERROR] Failed to close redis client: %v", err)
		}
	}
	return s.db.Close()
}

// NewRouter builds the chi router with all API routes. requestsPerMinute
// limits each client IP; zero disables the limit.
func NewRouter(h *handlers.Handler, requestsPerMinute int) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	if requestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/places/search", h.HandlePlaceSearch)

		r.Post("/optimize", h.HandleOptimize)
		r.Post("/assign", h.HandleAssign)
		r.Post("/balance", h.HandleBalance)
		r.Post("/balance/apply", h.HandleApplySuggestions)
		r.Post("/sequence", h.HandleSequence)
		r.Post("/validate", h.HandleValidate)
		r.Post("/mixed-days/correct", h.HandleCorrectMixedDays)
		r.Post("/context", h.HandleAnalyzeContext)

		r.Route("/itineraries", func(r chi.Router) {
			r.Get("/", h.HandleListItineraries)
			r.Post("/", h.HandleCreateItinerary)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetItinerary)
				r.Delete("/", h.HandleDeleteItinerary)
				r.Post("/enrich", h.HandleEnrichItinerary)
				r.Post("/optimize", h.HandleOptimizeItinerary)
				r.Get("/runs", h.HandleListRuns)
			})
		})

		r.Get("/runs/{runID}", h.HandleGetRun)
	})

	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf("%s %s %d %v request_id=%s", r.Method, r.URL.Path, status, time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
