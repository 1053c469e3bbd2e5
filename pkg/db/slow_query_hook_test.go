package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryOperation(t *testing.T) {
	assert.Equal(t, "select", queryOperation("\n  SELECT id FROM milestones"))
	assert.Equal(t, "update", queryOperation("UPDATE milestones SET x = 1"))
	assert.Equal(t, "unknown", queryOperation("   "))
}
