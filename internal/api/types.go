package api

import "github.com/mattjoyce/scriptbridge/internal/journal"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	Worker        string `json:"worker"`
	Profile       string `json:"profile"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Symbols       int    `json:"symbols"`
}

// RequestsResponse is returned by GET /requests.
type RequestsResponse struct {
	Requests []journal.Entry `json:"requests"`
}
