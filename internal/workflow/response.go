package workflow

import "toko/internal/validation"

// Response is the outcome of a workflow action. It is one of RenderView,
// Redirect, RedirectBack or ErrorStatus.
type Response interface {
	response()
}

// RenderView asks for the named view to be rendered with Data.
type RenderView struct {
	Name string
	Data map[string]any
}

// Redirect points the client to a named route (HTTP 302).
type Redirect struct {
	Route  string
	Params map[string]string
}

// RedirectBack returns the client to the submitting form (HTTP 302), carrying
// the field errors and the submitted values. Fallback is used when the
// request has no referer.
type RedirectBack struct {
	Fallback string
	Errors   validation.Errors
	Old      map[string]string
}

// ErrorStatus ends the request with an HTTP error status.
type ErrorStatus struct {
	Code int
}

func (RenderView) response()   {}
func (Redirect) response()     {}
func (RedirectBack) response() {}
func (ErrorStatus) response()  {}
