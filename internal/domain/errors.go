package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnavailable   = errors.New("source unavailable")
	ErrInvalidMarket = errors.New("invalid market data")
	ErrContextDone   = errors.New("context cancelled")
)
