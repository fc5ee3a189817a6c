package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/api/middleware"
	"github.com/Addy-9595/northeasternconnect-backend/internal/handlers"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/uploads"
)

const (
	maxJSONBody   = 64 * 1024
	maxUploadBody = uploads.MaxContentFiles*uploads.ContentMaxBytes + 1<<20
)

// Config carries what the router needs beyond the handler dependencies.
type Config struct {
	Handlers    handlers.Options
	RateLimiter *middleware.RateLimiter // in-process limits when nil
	CORSOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(logger, middleware.RateLimiterConfig{})
	}
	r.Use(limiter.Middleware)

	// The web client sends the token cookie, so origins must be explicit.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(cfg.Handlers)
	var revoked middleware.Revocations
	if cfg.Handlers.Redis != nil {
		revoked = cfg.Handlers.Redis
	}
	auth := middleware.NewAuthMiddleware(cfg.Handlers.Tokens, revoked, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/api/stats", h.Stats)

	if cfg.Handlers.Uploads != nil {
		fs := http.FileServer(http.Dir(cfg.Handlers.Uploads.Root()))
		r.Handle(uploads.URLPrefix+"/*", http.StripPrefix(uploads.URLPrefix, fs))
	}

	jsonBody := chi.Middlewares{
		middleware.MaxBodySize(maxJSONBody),
		middleware.ValidateRequest("application/json"),
	}
	uploadBody := chi.Middlewares{
		middleware.MaxBodySize(maxUploadBody),
		middleware.ValidateRequest("multipart/form-data"),
		auth.RequireAuth,
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(jsonBody...)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.With(auth.RequireAuth).Get("/me", h.Me)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.With(uploadBody...).Post("/profile/picture", h.UploadProfilePicture)

		r.Group(func(r chi.Router) {
			r.Use(jsonBody...)
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Put("/profile", h.UpdateProfile)
				r.Post("/certifications", h.AddCertification)
				r.Post("/{id}/follow", h.Follow)
				r.Delete("/{id}/unfollow", h.Unfollow)
				r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", h.DeleteUser)
			})
		})
	})

	r.Route("/api/posts", func(r chi.Router) {
		r.With(uploadBody...).Post("/upload-images", h.UploadContentImages)

		r.Group(func(r chi.Router) {
			r.Use(jsonBody...)
			r.Get("/", h.ListPosts)
			r.Get("/user/{userId}", h.ListUserPosts)
			r.Get("/{id}", h.GetPost)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/", h.CreatePost)
				r.Put("/{id}", h.UpdatePost)
				r.Delete("/{id}", h.DeletePost)
				r.Post("/{id}/like", h.ToggleLike)
				r.Post("/{id}/comment", h.AddComment)
				r.Delete("/{id}/comment/{commentId}", h.DeleteComment)
			})
		})
	})

	r.Route("/api/events", func(r chi.Router) {
		r.With(uploadBody...).Post("/upload-images", h.UploadContentImages)

		r.Group(func(r chi.Router) {
			r.Use(jsonBody...)
			r.Get("/", h.ListEvents)
			r.Get("/user/{userId}", h.ListUserEvents)
			r.Get("/{id}", h.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/", h.CreateEvent)
				r.Put("/{id}", h.UpdateEvent)
				r.Delete("/{id}", h.DeleteEvent)
				r.Post("/{id}/join", h.JoinEvent)
				r.Post("/{id}/leave", h.LeaveEvent)
			})
		})
	})

	// {id} is a job ID for reads and creates, a comment ID for deletes.
	r.Route("/api/job-comments", func(r chi.Router) {
		r.Use(jsonBody...)
		r.Get("/{id}", h.ListJobComments)
		r.With(auth.RequireAuth).Post("/{id}", h.AddJobComment)
		r.With(auth.RequireAuth).Delete("/{id}", h.DeleteJobComment)
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(jsonBody...)
		r.Use(auth.RequireAuth)
		r.Get("/conversations", h.Conversations)
		r.Post("/send", h.SendMessage)
		r.Get("/{id}", h.ConversationMessages)
		r.Put("/{id}/read", h.MarkRead)
		r.Delete("/{id}", h.DeleteMessage)
	})

	r.Group(func(r chi.Router) {
		r.Use(jsonBody...)
		r.Get("/api/skills/search", h.SearchSkills)
		r.Get("/api/certifications/fetch", h.FetchCertification)
	})

	return r
}
