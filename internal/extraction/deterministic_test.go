package extraction

import (
	"testing"

	"receiptradar-backend/internal/purchase/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeterministicAmazon(t *testing.T) {
	body := `Hello,
Your order of "Anker USB-C Charger" has shipped.
Order #113-7654321-1234567
Order Total: $45.99
Track it: 1Z999AA10123456784`

	res, ok := ExtractDeterministic("amazon", "Your Amazon.com order has shipped", body)
	require.True(t, ok)
	assert.Equal(t, "amazon", res.Merchant)
	assert.Equal(t, "Amazon", res.StoreName)
	assert.Equal(t, "113-7654321-1234567", res.OrderNumber)
	assert.Equal(t, int64(4599), res.ValueUsd)
	assert.Equal(t, int64(4599), res.OriginalValue)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "Anker USB-C Charger", res.ItemsSummary)
	require.Len(t, res.Trackings, 1)
	assert.Equal(t, "1Z999AA10123456784", res.Trackings[0].Number)
	assert.InDelta(t, 0.9, res.Confidence, 0.001)
	assert.NotContains(t, res.MissingFields, domain.MissingOrderNumber)
	assert.NotContains(t, res.MissingFields, domain.MissingValueUsd)
}

func TestExtractDeterministicEbay(t *testing.T) {
	body := "Order confirmed: 12-34567-89012\nOrder total: $19.50"
	res, ok := ExtractDeterministic("ebay", "You bought a thing", body)
	require.True(t, ok)
	assert.Equal(t, "12-34567-89012", res.OrderNumber)
	assert.Equal(t, int64(1950), res.ValueUsd)
}

func TestExtractDeterministicAliexpressNeedsOrderContext(t *testing.T) {
	// A bare long digit run without order context must not be treated as an
	// order number.
	_, ok := ExtractDeterministic("aliexpress", "Payment received", "ref 12345678901234")
	assert.False(t, ok)

	res, ok := ExtractDeterministic("aliexpress", "Your order has shipped", "Order ID: 8123456789012345\nTotal: US $7.30")
	require.True(t, ok)
	assert.Equal(t, "8123456789012345", res.OrderNumber)
	assert.Equal(t, int64(730), res.ValueUsd)
}

func TestExtractDeterministicInsufficientFallsThrough(t *testing.T) {
	// Total without an order number or tracking number is not enough.
	_, ok := ExtractDeterministic("amazon", "Receipt", "Order Total: $10.00")
	assert.False(t, ok)
}

func TestExtractDeterministicUnknownMerchant(t *testing.T) {
	_, ok := ExtractDeterministic("walmart", "Order shipped", "Order Total: $10.00")
	assert.False(t, ok)
}

func TestExtractDeterministicTrackingOnlySufficient(t *testing.T) {
	res, ok := ExtractDeterministic("amazon", "Shipped", "On the way: 1Z999AA10123456784")
	require.True(t, ok)
	assert.Empty(t, res.OrderNumber)
	require.Len(t, res.Trackings, 1)
	assert.Contains(t, res.MissingFields, domain.MissingOrderNumber)
	assert.NotContains(t, res.MissingFields, domain.MissingTracking)
}

func TestParseMoneyMinorUnits(t *testing.T) {
	v, ok := parseMoneyMinorUnits("1,234.56")
	require.True(t, ok)
	assert.Equal(t, int64(123456), v)

	_, ok = parseMoneyMinorUnits("not money")
	assert.False(t, ok)
}
