package contract

import (
	"errors"

	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/internal/wire"
)

// Code traduz um erro para um código estável exposto aos clientes. A ordem
// importa: erros específicos antes do genérico InvalidState.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownOperation):
		return "UnknownOperation"
	case errors.Is(err, ErrBadArgs), errors.Is(err, wire.ErrShortBuffer), errors.Is(err, wire.ErrInvalidBool):
		return "BadArgs"
	case errors.Is(err, ErrUnexpectedCoins):
		return "UnexpectedCoins"
	case errors.Is(err, market.ErrBelowMinimum):
		return "BelowMinimum"
	case errors.Is(err, market.ErrRoundNotActive):
		return "RoundNotActive"
	case errors.Is(err, market.ErrRoundNotFound):
		return "RoundNotFound"
	case errors.Is(err, market.ErrNotExpired):
		return "NotExpired"
	case errors.Is(err, market.ErrAlreadySettled):
		return "AlreadySettled"
	case errors.Is(err, market.ErrAlreadyClaimed):
		return "AlreadyClaimed"
	case errors.Is(err, market.ErrRoundNotSettled):
		return "RoundNotSettled"
	case errors.Is(err, market.ErrBettingClosed):
		return "BettingClosed"
	case errors.Is(err, market.ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, market.ErrNoPosition):
		return "NoPosition"
	case errors.Is(err, market.ErrInsufficientHouseLiquidity):
		return "InsufficientHouseLiquidity"
	case errors.Is(err, market.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, market.ErrInvalidCaller):
		return "InvalidCaller"
	case errors.Is(err, market.ErrAmountOverflow):
		return "AmountOverflow"
	case errors.Is(err, market.ErrStalePrice):
		return "StalePrice"
	case errors.Is(err, market.ErrOracleUnavailable):
		return "OracleUnavailable"
	}
	return "Internal"
}
