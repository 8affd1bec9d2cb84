package types

import "errors"

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrDriverRegistered       = errors.New("driver already registered")
	ErrDriverAlreadyOnline    = errors.New("driver already online")
	ErrDriverAlreadyOffline   = errors.New("driver already offline")
	ErrDriverMustBeAvailable  = errors.New("driver must be available")
	ErrDriverAlreadyOnTrip    = errors.New("driver is already on a trip")
	ErrLicenseAlreadyExists   = errors.New("license already exist")
	ErrInvalidLicenseFormat   = errors.New("invalid license format: AA123123")
	ErrNoCoordinates          = errors.New("no coordinates found")
	ErrDriverLocationNotFound = errors.New("driver location not found")

	ErrTripNotFound       = errors.New("trip not found")
	ErrTripNotAccepted    = errors.New("trip is not in accepted status")
	ErrTripNotInProgress  = errors.New("trip is not in progress")
	ErrTripDriverMismatch = errors.New("trip does not belong to the driver")
	ErrTripAlreadyClosed  = errors.New("trip is already completed or canceled")

	ErrNoCandidates       = errors.New("no eligible drivers found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOfferNotPending    = errors.New("offer is not pending")
	ErrOfferExpired       = errors.New("offer has expired")
	ErrDispatchInProgress = errors.New("trip already has an active dispatch")

	ErrInvalidFareInputs = errors.New("invalid fare calculation inputs")
)
