package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize("es"))

	assert.Equal(t, []string{"en", "es"}, GetSupportedLanguages())
	assert.Equal(t, "es", DefaultLanguage())

	assert.Equal(t, "Vendido", Label("es", PrefixTicketState, "sold"))
	assert.Equal(t, "Sold", Label("en", PrefixTicketState, "sold"))
	assert.Equal(t, "Disponible", Label("fr", PrefixTicketState, "available"), "unknown languages use the default")
	assert.Equal(t, "Invalid input", T("en", KeyValidationInvalid, "input"))
	assert.Equal(t, "no.such.key", T("en", "no.such.key"))
}

func TestCataloguesShareKeys(t *testing.T) {
	require.NoError(t, Initialize("es"))

	en := instance.translations["en"]
	es := instance.translations["es"]
	for key := range en {
		_, ok := es[key]
		assert.True(t, ok, "es catalogue is missing %q", key)
	}
	assert.Len(t, es, len(en))
}
