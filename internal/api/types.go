package api

// ErrorBody is the payload inside the error envelope.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ModelInfo describes one weights file in the models directory. ID is the
// file stem and can be passed back to the inspect and verify endpoints.
type ModelInfo struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	File      string `json:"file"`
	SizeBytes int64  `json:"size_bytes"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// InspectRequest names a weights file, either as a path or as a model ID
// resolved against the models directory.
type InspectRequest struct {
	File string `json:"file"`
}

type InspectResponse struct {
	Model        string `json:"model"`
	File         string `json:"file"`
	Version      string `json:"version"`
	Major        int32  `json:"major"`
	Minor        int32  `json:"minor"`
	Revision     int32  `json:"revision"`
	Seen         int32  `json:"seen"`
	Elements     int    `json:"elements"`
	PayloadBytes int64  `json:"payload_bytes"`
}

// VerifyRequest pairs an architecture manifest with a weights file.
type VerifyRequest struct {
	Manifest string `json:"manifest"`
	Weights  string `json:"weights"`
}

// VerifyResponse reports whether the weights file loads cleanly into the
// network the manifest describes. OK is false with Problem set when the
// file is truncated or its element count disagrees with the architecture.
type VerifyResponse struct {
	ID               string `json:"id"`
	Object           string `json:"object"`
	Model            string `json:"model"`
	File             string `json:"file"`
	Version          string `json:"version,omitempty"`
	ExpectedElements int    `json:"expected_elements"`
	PayloadElements  int    `json:"payload_elements"`
	OK               bool   `json:"ok"`
	Problem          string `json:"problem,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}
