package payments

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novastack/service_layer/internal/app/domain/user"
)

func TestPlans_CoverEveryTier(t *testing.T) {
	list := Plans()
	require.Len(t, list, 3)
	for i, tier := range []user.Tier{user.TierFree, user.TierPro, user.TierEnterprise} {
		assert.Equal(t, tier, list[i].ID)
		assert.True(t, list[i].ID.Valid())
		assert.NotEmpty(t, list[i].Features)
	}
	assert.True(t, list[0].Price.IsZero())
	assert.Equal(t, "29", list[1].Price.String())
}

func TestPlans_ReturnsCopies(t *testing.T) {
	list := Plans()
	list[0].Features[0] = "mutated"
	assert.NotEqual(t, "mutated", Plans()[0].Features[0])
}

func TestLookup(t *testing.T) {
	p, ok := Lookup(user.TierEnterprise)
	require.True(t, ok)
	assert.Equal(t, "99", p.Price.String())

	_, ok = Lookup("platinum")
	assert.False(t, ok)
}

func ExamplePlans() {
	for _, p := range Plans() {
		fmt.Println(p.Name, p.Price)
	}
	// Output:
	// Free 0
	// Pro 29
	// Enterprise 99
}
