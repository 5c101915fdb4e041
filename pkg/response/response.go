package response

// Response is the standard API envelope.
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`

	// Set only on paginated listings.
	Total *int64 `json:"total,omitempty"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paged returns a success response for a paginated listing.
func Paged(statusCode int, data interface{}, total int64, page, limit int) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Total:      &total,
		Page:       page,
		Limit:      limit,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
