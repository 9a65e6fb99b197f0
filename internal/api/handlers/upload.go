package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/storage"
	"github.com/rs/zerolog/log"
)

const maxImageSize = 5 << 20

// uploadedImage is a stored image that can be rolled back if the request fails.
type uploadedImage struct {
	store storage.Storage
	key   string
	URL   string
}

// Discard removes the stored file. Safe on nil.
func (u *uploadedImage) Discard(r *http.Request) {
	if u == nil {
		return
	}
	if err := u.store.Delete(r.Context(), u.key); err != nil {
		log.Warn().Err(err).Str("key", u.key).Msg("Failed to discard uploaded image")
	}
}

// saveImage stores the multipart "image" file under prefix. It returns nil
// when the request carries no image. The form must already be parsed.
func saveImage(r *http.Request, store storage.Storage, prefix string) (*uploadedImage, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.BadRequest("Invalid image upload").WithErr(err)
	}
	defer file.Close()

	if header.Size > maxImageSize {
		return nil, apperrors.BadRequest("Image must be 5MB or smaller")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.BadRequest("Invalid image upload").WithErr(err)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.BadRequest("Only image uploads are allowed")
	}

	key := storage.NewKey(prefix, header.Filename)
	body := io.MultiReader(bytes.NewReader(head), file)
	if err := store.Save(r.Context(), key, body, contentType); err != nil {
		return nil, err
	}
	return &uploadedImage{store: store, key: key, URL: store.URL(key)}, nil
}
