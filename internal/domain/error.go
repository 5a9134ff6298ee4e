package domain

import "errors"

var (
	ErrOCRFailed     = errors.New("ocr failed")
	ErrNoFields      = errors.New("no receipt fields recognized")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrStateNotFound = errors.New("conversation state not found")
	ErrInvalidToken  = errors.New("invalid bot token")
)
