package service

import "errors"

const (
	ErrCodeDatabase = "DATABASE_ERROR"
)

var (
	ErrMessageNotFound         = errors.New("MESSAGE_NOT_FOUND")
	ErrMessageAlreadyProcessed = errors.New("MESSAGE_ALREADY_PROCESSED")
	ErrUnknownMessageStatus    = errors.New("UNKNOWN_MESSAGE_STATUS")
	ErrMissingSenderAddress    = errors.New("MISSING_SENDER_ADDRESS")
	ErrDatabase                = errors.New("DATABASE_ERROR")
)

type Error struct {
	Code  string
	Cause error
}

func NewServiceError(code string, cause error) error {
	return Error{Code: code, Cause: cause}
}

func (e Error) Error() string {
	return e.Cause.Error()
}

func (e Error) Unwrap() error {
	return e.Cause
}
