package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"anichat/internal/domain"
	"anichat/internal/dto"
)

const (
	maxJSONBody      = 1 << 20
	maxMessageBody   = 8 << 20
	maxMultipartBody = 6 << 20
)

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

func isForm(r *http.Request) bool {
	switch mediaType(r) {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Invalid("Request body too large")
		}
		return domain.Invalid("Invalid request body")
	}
	return nil
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	var err error
	if mediaType(r) == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMultipartBody)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Invalid("Request body too large")
		}
		return domain.Invalid("Invalid form data")
	}
	return nil
}

// formFile reads an optional uploaded file. A missing field yields nil.
func formFile(r *http.Request, field string) (*dto.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Invalid("Invalid " + field + " upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.Invalid("Invalid " + field + " upload")
	}
	return &dto.Upload{Filename: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}, nil
}

func decodeSignup(w http.ResponseWriter, r *http.Request) (dto.SignupRequest, *dto.Upload, error) {
	var req dto.SignupRequest
	if !isForm(r) {
		err := decodeJSON(w, r, maxJSONBody, &req)
		return req, nil, err
	}
	if err := parseForm(w, r); err != nil {
		return req, nil, err
	}
	req = dto.SignupRequest{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	avatar, err := formFile(r, "avatar")
	return req, avatar, err
}
