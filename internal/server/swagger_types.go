package server

// DataResponse documents the envelope of single-object responses.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse documents the error envelope.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
