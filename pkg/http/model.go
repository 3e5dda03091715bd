package http

// APIResponse is the envelope of every JSON response. Errors travel in Data
// as a list of AppError.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"stock"`
	Message string                 `json:"message,omitempty" example:"stock is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
