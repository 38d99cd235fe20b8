package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/payload"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
	"github.com/vasapolrittideah/chatdesk/shared/validation"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeAndValidate writes a 400 and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := v.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			utilities.WriteJSON(w, http.StatusBadRequest, payload.ValidationErrorResponse{
				Message: "Missing required fields",
				Errors:  verr.Fields,
			})
			return false
		}

		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	return true
}
