package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrHistoryUnavailable = fmt.Errorf("history unavailable")
	ErrMalformedPayload   = fmt.Errorf("malformed payload")
	ErrLiveConnectionLost = fmt.Errorf("live connection lost")
	ErrSendFailed         = fmt.Errorf("send failed")
	ErrStaleScope         = fmt.Errorf("response belongs to a previous scope")
	ErrUnauthorized       = fmt.Errorf("unauthorized")

	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrContentRejected    = fmt.Errorf("content rejected by moderation")
	ErrForbidden          = fmt.Errorf("forbidden")
)
