package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mohamed20039/Renter/internal/apperrors"
)

// Envelope is the body of every successful account response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Token   string      `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// maxBodySize bounds every request body: one image plus the form fields.
const maxBodySize = maxImageSize + 1<<20

// limitBody caps r.Body at maxBodySize. Bodies that declare a larger
// Content-Length are rejected before anything is read.
func limitBody(w http.ResponseWriter, r *http.Request) error {
	if r.ContentLength > maxBodySize {
		return errBodyTooLarge(nil)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return nil
}

func errBodyTooLarge(err error) error {
	return apperrors.BadRequest("Image must be 5MB or smaller").WithErr(err)
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := limitBody(w, r); err != nil {
		return err
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		if isBodyTooLarge(err) {
			return errBodyTooLarge(err)
		}
		return apperrors.BadRequest("Invalid request body").WithErr(err)
	}
	return nil
}

// parseForm parses urlencoded and multipart bodies.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	if err := limitBody(w, r); err != nil {
		return err
	}
	err := r.ParseMultipartForm(maxBodySize)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if isBodyTooLarge(err) {
			return errBodyTooLarge(err)
		}
		return apperrors.BadRequest("Invalid request body").WithErr(err)
	}
	return nil
}

// formValue returns a pointer to the posted value, or nil when the field is absent.
func formValue(r *http.Request, key string) *string {
	if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
		v := vs[0]
		return &v
	}
	return nil
}
