package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/gamequery/internal/config"
)

func TestQueryBudgetCoversChallenge(t *testing.T) {
	budget := queryBudget(config.Timeouts{Read: 4 * time.Second, Write: 4 * time.Second, Attempts: 3})

	// challenge and status exchanges, every attempt timing out
	assert.GreaterOrEqual(t, budget, 2*3*4*time.Second)
	assert.Equal(t, 48*time.Second, budget)
}
