package logic

import (
	"errors"

	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/lock"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
)

var (
	ErrNotFound          = repository.ErrNotFound
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBelowMinimum      = errors.New("payout below dealer minimum")
	ErrUnauthorized      = auth.ErrUnauthorized
	ErrForbidden         = auth.ErrForbidden
	ErrDispatchFailed    = errors.New("payout dispatch failed")
	ErrBusy              = lock.ErrLockTimeout
)
