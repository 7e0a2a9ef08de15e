package engine

import "fmt"

// Code is a stable machine-readable error code surfaced to callers.
type Code string

const (
	CodeStaleAction         Code = "STALE_ACTION"
	CodeNotYourTurn         Code = "NOT_YOUR_TURN"
	CodeInvalidAction       Code = "INVALID_ACTION"
	CodeInsufficientChips   Code = "INSUFFICIENT_CHIPS"
	CodeBuyinOutOfRange     Code = "BUYIN_OUT_OF_RANGE"
	CodeSeatTaken           Code = "SEAT_TAKEN"
	CodeTableFull           Code = "TABLE_FULL"
	CodeNotSeated           Code = "NOT_SEATED"
	CodeGameNotFound        Code = "GAME_NOT_FOUND"
	CodeInvalidGameState    Code = "INVALID_GAME_STATE"
	CodeGamePaused          Code = "GAME_PAUSED"
	CodeInsufficientPlayers Code = "INSUFFICIENT_PLAYERS"
	CodeNotAuthorized       Code = "NOT_AUTHORIZED"
	CodeRoomInPlay          Code = "ROOM_IN_PLAY"
	CodeInvalidConfig       Code = "INVALID_CONFIG"
	CodeTransactionConflict Code = "TRANSACTION_CONFLICT"
)

// Error is a typed engine error. Validation and state errors surface to the
// caller with their code; transient conflicts are retried by the caller.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a typed engine error
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the engine code from an error, or "" if it is not an
// engine error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// ErrZombieTask is returned by task-driven operations whose token no longer
// matches table state. Deliveries that hit it are ignored, not failed.
var ErrZombieTask = &Error{Code: "ZOMBIE_TASK", Message: "stale scheduled task ignored"}

// IsZombie reports whether err is a benign stale-task result
func IsZombie(err error) bool {
	return err == ErrZombieTask
}
