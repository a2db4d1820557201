package market

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState               = errors.New("invalid state")
	ErrRoundNotFound              = errors.New("round not found")
	ErrBelowMinimum               = errors.New("amount below minimum")
	ErrNoPosition                 = errors.New("no position on winning side")
	ErrInsufficientHouseLiquidity = errors.New("insufficient house liquidity")
	ErrUnauthorized               = errors.New("caller not allowed")
	ErrInvalidCaller              = errors.New("caller address required")
	ErrAmountOverflow             = errors.New("amount overflows balance")
	ErrOracleUnavailable          = errors.New("oracle price unavailable")
	ErrStalePrice                 = errors.New("oracle price is stale")
)

// Erros de ciclo de vida: todos satisfazem errors.Is(err, ErrInvalidState).
var (
	ErrRoundActive     = stateError("a round is already active")
	ErrNotExpired      = stateError("round has not reached settlement time")
	ErrAlreadySettled  = stateError("round already settled")
	ErrRoundNotActive  = stateError("round is not active")
	ErrBettingClosed   = stateError("betting window is closed")
	ErrRoundNotSettled = stateError("round not settled")
	ErrAlreadyClaimed  = stateError("winnings already claimed")
)

func stateError(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidState, msg) }
