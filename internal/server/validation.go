package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// maxBodyBytes лимит тела запроса API
const maxBodyBytes = 64 * 1024

// decodeJSONBody декодирует JSON тело запроса с ограничением размера.
// Лишние данные после объекта считаются ошибкой.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("unsupported content type %q", ct)
		}
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}
