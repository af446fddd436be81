package carriers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"AMAZON", "DHL", "DPD", "GLS", "HERMES"}, r.Keys())

	rule, ok := r.Get("dhl")
	require.True(t, ok)
	assert.Equal(t, "DHL", rule.Name)

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_Add(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(Rule{Key: " paketda ", TrackingPattern: `\d{8}`}))
	rule, ok := r.Get("PAKETDA")
	require.True(t, ok)
	assert.Equal(t, "PAKETDA", rule.Key)

	assert.ErrorIs(t, r.Add(Rule{Key: "BAD"}), ErrInvalidRule)
	assert.ErrorIs(t, r.Add(Rule{TrackingPattern: `\d`}), ErrInvalidRule)

	list := r.List()
	assert.Len(t, list, 6)
	assert.Equal(t, "AMAZON", list[0].Key)
}

func TestRegistry_Override(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Override(Rule{Key: "DHL", APIKey: "secret", SearchCriteria: `(FROM "dhl.de")`}))
	rule, _ := r.Get("DHL")
	assert.Equal(t, "secret", rule.APIKey)
	assert.Equal(t, `(FROM "dhl.de")`, rule.SearchCriteria)
	assert.Equal(t, "geplant für ", rule.ETAString)
	assert.Equal(t, "https://api-eu.dhl.com/track/shipments", rule.APIURL)

	require.NoError(t, r.Override(Rule{Key: "NEW", TrackingPattern: `\d{9}`}))
	_, ok := r.Get("new")
	assert.True(t, ok)

	assert.Error(t, r.Override(Rule{Key: "GLS", TrackingPattern: `(`}))
	rule, _ = r.Get("GLS")
	assert.Equal(t, `\b\d{11}\b`, rule.TrackingPattern)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.Remove("gls")
	_, ok := r.Get("GLS")
	assert.False(t, ok)
}
