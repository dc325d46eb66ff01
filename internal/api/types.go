package api

// UploadResponse represents the response payload of a successful upload
type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func errorResponse(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}
