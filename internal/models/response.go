package models

// APIResponse - стандартный конверт успешного ответа.
type APIResponse struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// NewAPIResponse wraps payload data into the standard success envelope.
// Success is derived from the status code (everything below 400).
func NewAPIResponse(statusCode int, data interface{}, message string) APIResponse {
	return APIResponse{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < 400,
	}
}

// APIErrorResponse - стандартный конверт ответа об ошибке.
// Data всегда null, Errors может содержать структурированные детали
// (например, список полей, не прошедших валидацию).
type APIErrorResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Errors     []string    `json:"error"`
	Success    bool        `json:"success"`
}

// NewAPIErrorResponse wraps an error message into the standard failure envelope.
func NewAPIErrorResponse(statusCode int, message string, details []string) APIErrorResponse {
	if details == nil {
		details = []string{}
	}
	return APIErrorResponse{
		StatusCode: statusCode,
		Message:    message,
		Data:       nil,
		Errors:     details,
		Success:    false,
	}
}
