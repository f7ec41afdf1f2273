package lifecycle

import "dealdesk-backend/internal/domain"

// Board columns. Closed and cancelled deals are off the board entirely.
const (
	ColumnPreEscrow    = "pre_escrow"
	ColumnDueDiligence = "due_diligence"
	ColumnClosing      = "closing"
)

// Columns in display order.
var Columns = []string{ColumnPreEscrow, ColumnDueDiligence, ColumnClosing}

var statusToColumn = map[string]string{
	domain.StatusActive:       ColumnPreEscrow,
	domain.StatusDueDiligence: ColumnDueDiligence,
	domain.StatusClosing:      ColumnClosing,
}

var columnToStatus = map[string]string{
	ColumnPreEscrow:    domain.StatusActive,
	ColumnDueDiligence: domain.StatusDueDiligence,
	ColumnClosing:      domain.StatusClosing,
}

// ColumnFor maps a status to its board column. ok is false for terminal
// statuses, which have no column.
func ColumnFor(status string) (string, bool) {
	col, ok := statusToColumn[status]
	return col, ok
}

// StatusFor maps a column to the canonical status a drop onto it requests.
func StatusFor(column string) (string, bool) {
	status, ok := columnToStatus[column]
	return status, ok
}
