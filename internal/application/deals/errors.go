package deals

import "errors"

var (
	ErrDealNotFound      = errors.New("Deal not found")
	ErrInvalidTransition = errors.New("Invalid status transition")
	ErrDealTerminal      = errors.New("Deal is closed or cancelled")
	ErrUnknownColumn     = errors.New("Unknown board column")
	ErrSameColumn        = errors.New("Deal is already in that column")
	ErrNoDecisionDue     = errors.New("No extension decision is due for this deal")
)
