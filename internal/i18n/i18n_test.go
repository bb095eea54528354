package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize("en"))

	assert.Equal(t, "This product is out of stock.", T("en", ErrorKey("INSUFFICIENT_STOCK")))
	assert.Equal(t, "此商品已售完。", T("zh_TW", ErrorKey("INSUFFICIENT_STOCK")))
	assert.Equal(t, "Invalid request", T("en", KeyValidationInvalid, "request"))

	// unknown language falls back to the default
	assert.Equal(t, "Order not found.", T("fr", ErrorKey("ORDER_NOT_FOUND")))
	assert.Equal(t, "missing.key", T("en", "missing.key"))

	assert.Equal(t, "fallback", ErrorMessage("en", "NO_SUCH_CODE", "fallback"))
	assert.ElementsMatch(t, []string{"en", "zh_TW"}, GetSupportedLanguages())
}
