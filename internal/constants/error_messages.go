package constants

const (
	ErrCodeMessageNotFound    = "MESSAGE_NOT_FOUND"
	ErrCodeDuplicateMessage   = "DUPLICATE_MESSAGE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	ErrCodeValidation         = "VALIDATION_ERROR"
)

const (
	ErrMsgMessageNotFound    = "message not found"
	ErrMsgDuplicateMessage   = "duplicate message"
	ErrMsgInternalError      = "Internal server error"
	ErrMsgInvalidRequestBody = "failed to parse request body"
	ErrMsgValidation         = "request validation failed"
)

var errorMessages = map[string]string{
	ErrCodeMessageNotFound:    ErrMsgMessageNotFound,
	ErrCodeDuplicateMessage:   ErrMsgDuplicateMessage,
	ErrCodeInternalError:      ErrMsgInternalError,
	ErrCodeInvalidRequestBody: ErrMsgInvalidRequestBody,
	ErrCodeValidation:         ErrMsgValidation,
}

func GetErrorMessage(code string) string {
	if msg, exists := errorMessages[code]; exists {
		return msg
	}
	return ErrMsgInternalError
}

func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeInvalidRequestBody, ErrCodeValidation:
		return 400
	case ErrCodeMessageNotFound:
		return 404
	case ErrCodeDuplicateMessage:
		return 409
	case ErrCodeInternalError:
		return 500
	default:
		return 500
	}
}
