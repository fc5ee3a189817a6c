package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/api/middleware"
	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/lookup"
	"github.com/Addy-9595/northeasternconnect-backend/internal/messaging"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
	"github.com/Addy-9595/northeasternconnect-backend/internal/uploads"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Options carries the dependencies of the HTTP handlers.
type Options struct {
	Store          store.DataStore
	Redis          *store.RedisStore // optional
	Tokens         *crypto.TokenManager
	Messages       *messaging.Service
	Certifications *lookup.CertificationService
	Skills         *lookup.SkillService
	Uploads        *uploads.Storage
	Logger         zerolog.Logger
	SecureCookies  bool
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store         store.DataStore
	redis         *store.RedisStore
	tokens        *crypto.TokenManager
	messages      *messaging.Service
	certs         *lookup.CertificationService
	skills        *lookup.SkillService
	uploads       *uploads.Storage
	logger        zerolog.Logger
	secureCookies bool
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:         opts.Store,
		redis:         opts.Redis,
		tokens:        opts.Tokens,
		messages:      opts.Messages,
		certs:         opts.Certifications,
		skills:        opts.Skills,
		uploads:       opts.Uploads,
		logger:        opts.Logger,
		secureCookies: opts.SecureCookies,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ServerError logs err and sends a generic 500 response.
func (h *Handler) ServerError(w http.ResponseWriter, r *http.Request, err error, message string) {
	h.logger.Error().
		Err(err).
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg(message)
	h.Error(w, http.StatusInternalServerError, message)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// currentUser returns the authenticated caller, answering 401 itself when
// there is none.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *crypto.Claims {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
	}
	return claims
}

// pathID parses a UUID URL parameter, answering 400 itself when malformed.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	return truncate(name, 100)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// tooLong reports whether s exceeds n characters.
func tooLong(s string, n int) bool {
	return utf8.RuneCountInString(s) > n
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	// Must be reasonable length and match RFC 5322 pattern
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
