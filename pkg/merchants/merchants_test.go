package merchants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootDomain(t *testing.T) {
	assert.Equal(t, "amazon.com", RootDomain("mail.amazon.com"))
	assert.Equal(t, "amazon.com", RootDomain("AMAZON.COM"))
	assert.Equal(t, "ebay.es", RootDomain("reply.ebay.es."))
	assert.Equal(t, "localhost", RootDomain("localhost"))

	// Documented limitation: multi-label public suffixes collapse to the
	// suffix itself.
	assert.Equal(t, "co.uk", RootDomain("amazon.co.uk"))
}

func TestContainsDomain(t *testing.T) {
	list := []string{"amazon.com", "amazon.co.uk"}
	assert.True(t, ContainsDomain(list, "mail.amazon.com"))
	assert.True(t, ContainsDomain(list, "amazon.co.uk"))
	assert.False(t, ContainsDomain(list, "amazonses.com"))
}

func TestByName(t *testing.T) {
	m := ByName("amazon")
	require.NotNil(t, m)
	assert.Equal(t, "Amazon", m.DisplayName)
	assert.Nil(t, ByName("unknown-shop"))
}

func TestDisplayNameFor(t *testing.T) {
	assert.Equal(t, "eBay", DisplayNameFor("ebay"))
	assert.Equal(t, "mystore", DisplayNameFor("mystore"))
}

func TestRegistryShape(t *testing.T) {
	for _, m := range All() {
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.AllowDomains, "merchant %s needs allow domains", m.Name)
		assert.NotEmpty(t, m.IncludeKeywords, "merchant %s needs include keywords", m.Name)
		assert.NotEmpty(t, m.BodyMarkers, "merchant %s needs body markers", m.Name)
	}
}
