package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"weathergen/internal/common"
	"weathergen/internal/platform/storage"
)

type ArtifactHandler struct {
	store *storage.LocalStore
}

func NewArtifactHandler(store *storage.LocalStore) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

func (h *ArtifactHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{jobID}/{name}", h.Download)
}

// Download serves a stored image iff the request carries a valid, unexpired
// signature issued by the status endpoint.
func (h *ArtifactHandler) Download(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "jobID") + "/" + chi.URLParam(r, "name")

	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "missing or invalid expires parameter")
		return
	}
	sig := r.URL.Query().Get("sig")

	if err := h.store.Verify(ref, expires, sig, time.Now()); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	path, err := h.store.Resolve(ref)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}
