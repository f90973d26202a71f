package handlers

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"dashboard/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxRequestBodySize - максимальный размер тела запроса (1 MB)
const MaxRequestBodySize = 1 << 20

// ErrorResponse - стандартный формат ошибки API
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse - стандартный формат успешного ответа без данных
type SuccessResponse struct {
	Message string `json:"message"`
}

// respondWithJSON сериализует payload и отправляет с указанным статусом
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		utils.L().Error("failed to marshal response", utils.Err(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondWithError отправляет ошибку в стандартном формате
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message})
}

// respondWithErrorCode отправляет ошибку с машиночитаемым кодом
func respondWithErrorCode(w http.ResponseWriter, status int, message, code string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// decodeBody парсит JSON тело запроса с лимитом размера
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeBodyStrict дополнительно отклоняет неизвестные поля
func decodeBodyStrict(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
