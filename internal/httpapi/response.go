package httpapi

import (
	"encoding/json"
	"net/http"

	"webar/internal/api"
	"webar/internal/services"
)

func success(r *http.Request, data any, message string) api.Envelope {
	return api.Envelope{Success: true, Data: data, Message: message, RequestID: requestID(r)}
}

func failure(r *http.Request, message string) api.Envelope {
	return api.Envelope{Success: false, Message: message, RequestID: requestID(r)}
}

func requestID(r *http.Request) string {
	id, _ := services.RequestIDFromContext(r.Context())
	return id
}

func writeEnvelope(w http.ResponseWriter, status int, payload api.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
