package mailer

import "errors"

const (
	ErrorCodeTimeout       = "TIMEOUT"        // Dial or IO deadline exceeded
	ErrorCodeNetworkError  = "NETWORK_ERROR"  // Connection failures
	ErrorCodeProtocolError = "PROTOCOL_ERROR" // Unexpected SMTP dialogue failure
	ErrorCodeRejected      = "REJECTED"       // Server refused sender, recipient or auth
	ErrorCodeRenderError   = "RENDER_ERROR"   // Template rendering failure
)

// DeliveryError carries the upstream diagnostic alongside a stable code so
// callers can classify failures without parsing server responses.
type DeliveryError struct {
	Code     string
	Response string
	Err      error
}

func NewDeliveryError(code string, response string, err error) error {
	return &DeliveryError{Code: code, Response: response, Err: err}
}

func (e *DeliveryError) Error() string {
	if e.Response != "" {
		return e.Code + ": " + e.Response
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the delivery error code, or empty when err is not a
// DeliveryError.
func CodeOf(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
