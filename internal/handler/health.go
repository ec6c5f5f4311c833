package handler

import "net/http"

type healthResponse struct {
	OK   bool   `json:"ok"`
	Port int    `json:"port"`
	Env  string `json:"env"`
}

// Health answers load balancer and uptime checks. It never touches the store.
//
// HTTP: GET /healthz
func Health(port int, env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{OK: true, Port: port, Env: env})
	}
}

// NotFound is the JSON 404 for routes that do not exist.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "route not found"})
}
