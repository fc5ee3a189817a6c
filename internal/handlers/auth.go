package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Addy-9595/northeasternconnect-backend/internal/api/middleware"
	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

const maxBioLength = 500

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	Role       models.Role `json:"role"`
	Bio        string      `json:"bio"`
	Major      string      `json:"major"`
	Department string      `json:"department"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	name := sanitizeName(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "please provide name, email, and password")
		return
	}
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < crypto.MinPasswordLength {
		h.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if role == models.RoleAdmin {
		h.Error(w, http.StatusBadRequest, "admin role cannot be self-assigned")
		return
	}
	if !role.Valid() {
		h.Error(w, http.StatusBadRequest, "role must be student or professor")
		return
	}
	if tooLong(req.Bio, maxBioLength) {
		h.Error(w, http.StatusBadRequest, "bio cannot exceed 500 characters")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.ServerError(w, r, err, "failed to hash password")
		return
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Bio:          strings.TrimSpace(req.Bio),
		Major:        strings.TrimSpace(req.Major),
		Department:   strings.TrimSpace(req.Department),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.Error(w, http.StatusBadRequest, "user with this email already exists")
			return
		}
		h.ServerError(w, r, err, "failed to create user")
		return
	}
	metrics.UsersRegistered.Inc()

	token, ok := h.issueToken(w, r, user)
	if !ok {
		return
	}
	emptyRelations(user)

	h.JSON(w, http.StatusCreated, AuthResponse{
		Message: "user registered successfully",
		User:    user,
		Token:   token,
	})
}

// Login exchanges credentials for a token, also set as a cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "please provide email and password")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return
	}
	if user == nil || crypto.CheckPassword(user.PasswordHash, req.Password) != nil {
		h.logger.Warn().
			Str("type", "security").
			Str("event", "login_failed").
			Str("ip", middleware.RealIP(r)).
			Msg("invalid login attempt")
		h.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, ok := h.issueToken(w, r, user)
	if !ok {
		return
	}
	if err := h.loadRelations(r.Context(), user); err != nil {
		h.ServerError(w, r, err, "failed to load profile")
		return
	}

	h.JSON(w, http.StatusOK, AuthResponse{
		Message: "login successful",
		User:    user,
		Token:   token,
	})
}

// Logout clears the auth cookie and, when a shared store is configured,
// revokes the presented token until it would have expired.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := middleware.TokenFromRequest(r); raw != "" && h.redis != nil {
		if claims, err := h.tokens.Parse(raw); err == nil && claims.ExpiresAt != nil {
			if err := h.redis.RevokeToken(r.Context(), claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
				h.logger.Warn().Err(err).Msg("failed to revoke token")
			}
		}
	}

	http.SetCookie(w, h.cookie("", -1))
	h.JSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.loadRelations(r.Context(), user); err != nil {
		h.ServerError(w, r, err, "failed to load profile")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, user *models.User) (string, bool) {
	token, _, err := h.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.ServerError(w, r, err, "failed to issue token")
		return "", false
	}
	http.SetCookie(w, h.cookie(token, int(h.tokens.TTL().Seconds())))
	return token, true
}

func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	// The frontend is served from another site in production.
	if h.secureCookies {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// loadRelations fills the certifications and social graph of u.
func (h *Handler) loadRelations(ctx context.Context, u *models.User) error {
	var err error
	if u.Certifications, err = h.store.ListCertifications(ctx, u.ID); err != nil {
		return err
	}
	if u.Followers, err = h.store.ListFollowers(ctx, u.ID); err != nil {
		return err
	}
	if u.Following, err = h.store.ListFollowing(ctx, u.ID); err != nil {
		return err
	}
	return nil
}

func emptyRelations(u *models.User) {
	u.Certifications = []models.Certification{}
	u.Followers = []models.UserRef{}
	u.Following = []models.UserRef{}
}
