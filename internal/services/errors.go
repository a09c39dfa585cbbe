package services

import "errors"

var (
	ErrQuotaExceeded        = errors.New("free generation limit reached, kindly login to continue")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPhoneModelNotFound   = errors.New("phone model not found")
	ErrGenerationEmpty      = errors.New("image generation failed, no images produced")
	ErrDownloadLinkNotFound = errors.New("download link not found or expired")
	ErrUserExists           = errors.New("user with given email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUserNotFound         = errors.New("user not found")
	ErrResetTokenInvalid    = errors.New("reset token is invalid or expired")
	ErrQueueClosed          = errors.New("publish queue is closed")
)
