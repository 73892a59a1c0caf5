package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tarschat/pkg/auth"
	"tarschat/pkg/blob"
	"tarschat/pkg/store"
	"tarschat/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterBlobs registers blob boundary routes. Upload is gated by a
// short-lived signed token rather than the user signature middleware;
// the token is only issued to signed callers.
func RegisterBlobs(r *mux.Router) {
	r.Handle("/blobs/upload-url", auth.RequireSignedUser(http.HandlerFunc(generateUploadURL))).Methods(http.MethodPost)
	r.HandleFunc("/blobs/upload", uploadBlob).Methods(http.MethodPut)
	r.HandleFunc("/blobs/{ref}", getBlob).Methods(http.MethodGet)
}

// generateUploadURL handles POST /blobs/upload-url.
func generateUploadURL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if _, ok := caller(w, r); !ok {
		return
	}
	u, err := blob.GenerateUploadURL()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": u})
}

// uploadBlob handles PUT /blobs/upload?token=. The body is stored as an
// opaque blob and a reference is returned for use in send payloads.
func uploadBlob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := blob.VerifyUploadToken(r.URL.Query().Get("token")); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, blob.MaxUploadBytes()+1))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if int64(len(data)) > blob.MaxUploadBytes() {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "blob too large")
		return
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	ref, err := blob.Put(ct, data)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"ref": ref})
}

// getBlob handles GET /blobs/{ref}, serving the stored bytes with their
// original content type.
func getBlob(w http.ResponseWriter, r *http.Request) {
	meta, data, err := blob.Get(mux.Vars(r)["ref"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "blob not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", meta.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
