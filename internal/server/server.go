package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/infra"
	"github.com/xela07ax/erp-backend-prototype/internal/infra/auth"
	"github.com/xela07ax/erp-backend-prototype/internal/registry"
	"github.com/xela07ax/erp-backend-prototype/internal/service"
)

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка токенов на периметре (RS256)
	authValidator auth.TokenValidator

	authService *service.AuthService
	handler     *ResourceHandler
	routes      []registry.Route
}

// NewServer собирает HTTP-периметр: публичный логин и healthcheck плюс
// защищенные маршруты всех зарегистрированных ресурсов.
func NewServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authService *service.AuthService,
	handler *ResourceHandler,
	routes []registry.Route,
) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.Named("api"),
		cfg:           cfg,
		authValidator: validator,
		authService:   authService,
		handler:       handler,
		routes:        routes,
	}

	s.mount()
	return s
}

func (s *Server) mount() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TraceMiddleware(s.logger))
	r.Use(RateLimitMiddleware(s.cfg.Pipeline.RateLimitRPS, s.cfg.Pipeline.RateLimitBurst))

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Логин доступен без токена
		r.Post("/auth/token", s.login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (требует RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Route("/v1", func(r chi.Router) {
			for _, route := range s.routes {
				r.Method(route.Method, route.Pattern, s.handler.Handle(route.Op))
			}
		})
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := s.authService.GenerateToken(r.Context(), req.Username, req.Password)
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
