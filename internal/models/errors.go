package models

import "errors"

var (
	// ErrValidation marks bad or missing request fields.
	ErrValidation = errors.New("validation error")
	// ErrAlreadyExists is returned when registering an ad unit id twice.
	ErrAlreadyExists = errors.New("ad unit already exists")
	// ErrUnknownAdUnit marks a bid whose adId matches no registered unit.
	ErrUnknownAdUnit = errors.New("unknown ad unit")
	// ErrInvalidInput is returned by the auction engine when candidate bids
	// exist but none of them references a known ad unit.
	ErrInvalidInput = errors.New("invalid auction input")
	// ErrNotFound is returned when an entity is not found in a store.
	ErrNotFound = errors.New("entity not found")
)
