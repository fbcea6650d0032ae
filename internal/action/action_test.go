package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKnownActions(t *testing.T) {
	for _, a := range All() {
		got, err := Parse(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
}

func TestParseUnknownAction(t *testing.T) {
	_, err := Parse("drop-tables")
	require.Error(t, err)
	var unknown *ErrUnknown
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "drop-tables", unknown.Name)
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	assert.Equal(t, InitDB, All()[0])
	assert.Len(t, All(), 24)
}

func TestClassification(t *testing.T) {
	assert.True(t, GetAdminStats.RequiresAdmin())
	assert.True(t, AdminGeneratePromo.RequiresAdmin())
	assert.False(t, VerifyAdmin.RequiresAdmin())
	assert.False(t, GetAdminPrompt.RequiresAdmin())

	assert.True(t, SaveHistory.UserScoped())
	assert.False(t, Research.UserScoped())

	assert.False(t, Research.NeedsTables())
	assert.True(t, GenerateHooks.NeedsTables())

	assert.Equal(t, BudgetLong, GenerateHooks.Budget())
	assert.Equal(t, BudgetLong, CreateCheckoutSession.Budget())
	assert.Equal(t, BudgetSync, GetHistory.Budget())
}
