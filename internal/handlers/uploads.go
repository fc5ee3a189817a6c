package handlers

import (
	"errors"
	"net/http"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/uploads"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// UploadImagesResponse represents the bulk image upload response.
type UploadImagesResponse struct {
	Message string   `json:"message"`
	Images  []string `json:"images"`
}

// ProfilePictureResponse represents the profile picture upload response.
type ProfilePictureResponse struct {
	Message        string       `json:"message"`
	ProfilePicture string       `json:"profile_picture"`
	User           *models.User `json:"user"`
}

// UploadProfilePicture stores one image and makes it the caller's profile picture.
func (h *Handler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	files := r.MultipartForm.File["profile_picture"]
	if len(files) == 0 {
		h.Error(w, http.StatusBadRequest, uploads.ErrNoFile.Error())
		return
	}
	if len(files) > 1 {
		h.Error(w, http.StatusBadRequest, "only one profile picture allowed")
		return
	}

	url, err := h.uploads.Save(uploads.KindProfile, files[0])
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	user, err := h.store.UpdateProfile(r.Context(), claims.UserID, models.ProfileUpdate{ProfilePicture: &url})
	if err != nil {
		h.uploads.Remove(url)
		h.ServerError(w, r, err, "failed to update profile")
		return
	}
	if user == nil {
		h.uploads.Remove(url)
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.loadRelations(r.Context(), user); err != nil {
		h.ServerError(w, r, err, "failed to load profile")
		return
	}

	h.JSON(w, http.StatusOK, ProfilePictureResponse{
		Message:        "profile picture updated",
		ProfilePicture: url,
		User:           user,
	})
}

// UploadContentImages stores up to ten post or event images and returns
// their URLs for use in a later create or update.
func (h *Handler) UploadContentImages(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(w, r) == nil {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	urls, err := h.uploads.SaveAll(uploads.KindContent, r.MultipartForm.File["images"])
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, UploadImagesResponse{
		Message: "images uploaded successfully",
		Images:  urls,
	})
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.Error(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func (h *Handler) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, uploads.ErrNoFile),
		errors.Is(err, uploads.ErrTooManyFiles),
		errors.Is(err, uploads.ErrUnsupportedType):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, uploads.ErrTooLarge):
		h.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		h.ServerError(w, r, err, "failed to store upload")
	}
}
