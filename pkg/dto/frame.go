package dto

// Detection is one (name, category) pair matched in an uploaded frame.
type Detection struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// UploadFrameResponse is the synchronous answer to a frame upload.
type UploadFrameResponse struct {
	Status     string      `json:"status"`
	Detections []Detection `json:"detections"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SourceListResponse struct {
	Sources []string `json:"sources"`
	Total   int      `json:"total"`
}
