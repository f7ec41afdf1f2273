package lifecycle

import (
	"testing"

	"dealdesk-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestColumnFor(t *testing.T) {
	col, ok := ColumnFor(domain.StatusActive)
	assert.True(t, ok)
	assert.Equal(t, ColumnPreEscrow, col)

	col, ok = ColumnFor(domain.StatusDueDiligence)
	assert.True(t, ok)
	assert.Equal(t, ColumnDueDiligence, col)

	col, ok = ColumnFor(domain.StatusClosing)
	assert.True(t, ok)
	assert.Equal(t, ColumnClosing, col)

	// Terminal deals are off the board.
	_, ok = ColumnFor(domain.StatusClosed)
	assert.False(t, ok)
	_, ok = ColumnFor(domain.StatusCancelled)
	assert.False(t, ok)
}

func TestStatusFor(t *testing.T) {
	for _, col := range Columns {
		status, ok := StatusFor(col)
		assert.True(t, ok)
		back, ok := ColumnFor(status)
		assert.True(t, ok)
		assert.Equal(t, col, back)
	}

	_, ok := StatusFor("archived")
	assert.False(t, ok)
}
