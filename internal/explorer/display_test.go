package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

func TestRelationshipGroups(t *testing.T) {
	conn := func(rel core.RelationshipType, key, id string) core.Connection {
		return core.Connection{RelationshipType: rel, Connected: map[string]any{key: id}}
	}

	groups := RelationshipGroups(&core.Relationships{Transaction: &core.TransactionRelationships{
		Sender:       map[string]any{"user_id": "u1"},
		Receiver:     map[string]any{"user_id": "u2"},
		SharedDevice: []core.Connection{conn(core.RelSharedDevice, "txn_id", "t2")},
	}})
	assert.Equal(t, []Group{
		{Title: "Sender", IDs: []string{"u1"}},
		{Title: "Receiver", IDs: []string{"u2"}},
		{Title: "Shared Device", IDs: []string{"t2"}},
	}, groups)

	assert.Nil(t, RelationshipGroups(nil))
	assert.Empty(t, RelationshipGroups(&core.Relationships{User: &core.UserRelationships{}}))
}

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Shared Payment Method", CategoryTitle("SHARED_PAYMENT_METHOD"))
	assert.Equal(t, "Direct Transactions", CategoryTitle("direct transactions"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$120.5", FormatAmount(120.5))
	assert.Equal(t, "$99", FormatAmount(99))
}
