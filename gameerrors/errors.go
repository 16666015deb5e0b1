package gameerrors

import "errors"

// Sentinel errors shared by the game, sessions, ws and api packages
// so none of them has to import another just to compare errors.
var (
	ErrRoundFinished  = errors.New("round already finished")
	ErrInvalidCard    = errors.New("invalid card")
	ErrNotYourPhase   = errors.New("wait for the current attempt to resolve")
	ErrSessionClosed  = errors.New("session closed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAuthNotEnabled = errors.New("server auth not configured")
)
