package order

import "errors"

var (
	ErrIncompleteModifierSelection = errors.New("incomplete modifier selection")
	ErrInvalidModifier             = errors.New("invalid modifier selection")
	ErrItemNotFound                = errors.New("item not found")
	ErrAlreadyVoided               = errors.New("item already voided")
	ErrOrderLocked                 = errors.New("order is locked")
	ErrEmptyOrder                  = errors.New("nothing to send")
	ErrInsufficientAmount          = errors.New("insufficient amount")
	ErrUnknownTender               = errors.New("unknown tender")
	ErrSplitIncomplete             = errors.New("split incomplete")
	ErrMergeSeatCollision          = errors.New("merge seat collision")

	ErrNoOrder            = errors.New("no open order")
	ErrSessionBusy        = errors.New("session already holds an open order")
	ErrTableRequired      = errors.New("dine-in orders require a table")
	ErrTableUnavailable   = errors.New("table cannot take orders")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidSeat        = errors.New("seat must be at least 1")
	ErrInvalidCourse      = errors.New("course must be at least 1")
	ErrInvalidStatus      = errors.New("invalid status transition")
	ErrUnknownMenuItem    = errors.New("unknown menu item")
	ErrNothingToRepeat    = errors.New("nothing to repeat")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTender      = errors.New("invalid tender")
	ErrInvalidSplit       = errors.New("invalid split")
	ErrShareSettled       = errors.New("share already paid")
	ErrInvalidTip         = errors.New("invalid tip")
	ErrReasonRequired     = errors.New("void reason is required")
	ErrUnknownDestination = errors.New("unknown destination")
)
