package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunResponse describes one stack run.
type RunResponse struct {
	ID           string     `json:"id"`
	Project      string     `json:"project"`
	ManifestPath string     `json:"manifest_path"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
}

// RunContainerResponse describes one container recorded for a run.
type RunContainerResponse struct {
	ServiceName   string `json:"service_name"`
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	Image         string `json:"image"`
	State         string `json:"state"`
}

// RunDetailResponse is a run with its recorded containers.
type RunDetailResponse struct {
	RunResponse
	Containers []RunContainerResponse `json:"containers"`
}

// ListRunsResponse is the run listing response.
type ListRunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// ContainerStateResponse describes the live state of one project container.
type ContainerStateResponse struct {
	Service string `json:"service"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Health  string `json:"health,omitempty"`
}

// StatusResponse is the aggregate project status.
type StatusResponse struct {
	Project    string                   `json:"project"`
	Run        *RunResponse             `json:"run,omitempty"`
	Containers []ContainerStateResponse `json:"containers"`
}
