package domain

import "errors"

var (
	// ErrInsufficientData marks a symbol without enough kline history.
	ErrInsufficientData = errors.New("insufficient kline history")
	// ErrAgreementRequired is returned when the exchange wants a trading agreement signed first.
	ErrAgreementRequired = errors.New("trading agreement required")
	// ErrWouldTrigger is returned when a stop price would trigger immediately.
	ErrWouldTrigger = errors.New("order would immediately trigger")
)
