package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeData wraps successful payloads in the {"data": ...} envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeBody reads a JSON request body into dst. A missing body is
// allowed only when allowEmpty is set; callers validate field presence
// themselves.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.ValidationError("invalid JSON body")
	}
	return nil
}
