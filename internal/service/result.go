package service

import "errors"

// Result is the uniform outcome every public operation is rendered as.
type Result struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	RedirectTo string            `json:"redirectTo,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Data       any               `json:"data,omitempty"`
}

// ResultOf renders err as a failed Result, or a successful one carrying
// message when err is nil. Unexpected errors are not echoed to the caller.
func ResultOf(err error, message string) Result {
	if err == nil {
		return Result{Success: true, Message: message}
	}
	var e *Error
	if !errors.As(err, &e) {
		return Result{Success: false, Message: "something went wrong"}
	}
	msg := e.Message
	if e.Kind == KindProvider && e.Err != nil {
		msg = e.Err.Error()
	}
	return Result{
		Success:    false,
		Message:    msg,
		RedirectTo: e.RedirectTo,
		Fields:     e.Fields,
	}
}

// WithData attaches a payload to a successful result.
func (r Result) WithData(data any) Result {
	r.Data = data
	return r
}
