// Package server provides the HTTP surface of the extraction control plane.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// WorkItemRequest is one {platform, code} entry in a process request.
type WorkItemRequest struct {
	// Platform is the source platform, e.g. "instagram".
	Platform string `json:"platform" validate:"required"`
	// Code is the platform-specific video identifier.
	Code string `json:"code" validate:"required"`
}

// ProcessRequest is the HTTP request body for submitting an extraction batch.
type ProcessRequest struct {
	// Items are the videos to extract. The upper bound is enforced against
	// the configured per-request cap.
	Items []WorkItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ProcessResponse is the HTTP response after accepting a batch.
type ProcessResponse struct {
	// JobID identifies the created job for status polling.
	JobID string `json:"jobId"`
}

// ItemResponse reports one work item's status.
type ItemResponse struct {
	Platform   string `json:"platform"`
	Code       string `json:"code"`
	ItemStatus string `json:"item_status"`
}

// LogResponse is one job log entry.
type LogResponse struct {
	Ts    time.Time `json:"ts"`
	Level string    `json:"level"`
	Msg   string    `json:"msg"`
}

// StatusResponse is the HTTP response for job status polling.
type StatusResponse struct {
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Items     []ItemResponse `json:"items"`
	Logs      []LogResponse  `json:"logs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
