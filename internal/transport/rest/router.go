package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"huntcurator/internal/service"
	"huntcurator/internal/transport/rest/handler"
	"huntcurator/internal/transport/rest/middleware"
	"huntcurator/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService     *service.AuthService
	CurationService *service.CurationService
	WSHub           *ws.Hub
	CORSOrigins     string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.CurationService)
	reviewHandler := handler.NewReviewHandler(c.CurationService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.CurationService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORSOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/sessions/{id}", wsHandler.SessionWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Curator routes
	cur := v1.NewRoute().Subrouter()
	cur.Use(authMW.RequireCurator)

	cur.HandleFunc("/rubric/preview", sessionHandler.PreviewRubric).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions", sessionHandler.Create).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/rubric", sessionHandler.UpdateRubric).Methods("PUT", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/criteria/missing", sessionHandler.MissingCriteria).Methods("GET", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/reference", sessionHandler.CheckReference).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/runs", sessionHandler.AppendRun).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/reset", sessionHandler.Reset).Methods("POST", "OPTIONS")

	// Review cycle
	cur.HandleFunc("/sessions/{id}/selection/{row}", reviewHandler.Select).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/selection/{row}", reviewHandler.Deselect).Methods("DELETE")
	cur.HandleFunc("/sessions/{id}/confirm", reviewHandler.Confirm).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/reviews/{row}", reviewHandler.SubmitReview).Methods("PUT", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/reveal", reviewHandler.Reveal).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/save", reviewHandler.Save).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/restart", reviewHandler.Restart).Methods("POST", "OPTIONS")
	cur.HandleFunc("/sessions/{id}/curations", reviewHandler.SessionCurations).Methods("GET", "OPTIONS")
	cur.HandleFunc("/curations", reviewHandler.ListCurations).Methods("GET", "OPTIONS")
	cur.HandleFunc("/curations/{cycleId}", reviewHandler.GetCuration).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
