package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"english transit", "In Transit", StatusInDelivery},
		{"german unterwegs", "Ihr Paket ist unterwegs", StatusInDelivery},
		{"dpd phrase", "stellen wir", StatusInDelivery},
		{"delivered", "Delivered", StatusDelivered},
		{"ausgeliefert", "Sendung ausgeliefert", StatusDelivered},
		{"waiting", "pending", StatusWaiting},
		{"wartet", "Ihr Paket wartet", StatusWaiting},
		{"pickup", "Abholbereit in der Filiale", StatusReadyForPickup},
		{"packstation", "Packstation 123", StatusReadyForPickup},
		{"failed english", "failed delivery attempt", StatusDeliveryFailed},
		{"unmapped text returned unchanged", "Foo Bar", "Foo Bar"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapStatus(tt.raw))
		})
	}
}

func TestMapStatus_FirstCategoryWins(t *testing.T) {
	// "zustellung" belongs to the first category and shadows the failure category.
	assert.Equal(t, StatusInDelivery, MapStatus("Zustellung fehlgeschlagen"))

	// "zugestellt" in the delivered category is reached before the failure category.
	assert.Equal(t, StatusDelivered, MapStatus("Paket konnte nicht zugestellt werden"))
}

func TestMapStatus_Idempotent(t *testing.T) {
	for _, m := range statusTable {
		mapped := MapStatus(m.Category)
		assert.True(t, IsCanonicalStatus(mapped), "category %q mapped to %q", m.Category, mapped)
		assert.Equal(t, mapped, MapStatus(mapped))
	}
}

func TestStatusTable_Order(t *testing.T) {
	categories := make([]string, 0, len(statusTable))
	for _, m := range statusTable {
		categories = append(categories, m.Category)
	}
	assert.Equal(t, []string{
		StatusInDelivery,
		StatusDelivered,
		StatusWaiting,
		StatusDeliveryFailed,
		StatusReadyForPickup,
	}, categories)
	assert.False(t, IsCanonicalStatus(StatusUnknown))
	assert.False(t, IsCanonicalStatus("pre-information"))
}
