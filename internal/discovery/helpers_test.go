package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/page"
)

func mustParse(t *testing.T, html string) *page.Document {
	t.Helper()
	doc, err := page.Parse(html)
	require.NoError(t, err)
	return doc
}
