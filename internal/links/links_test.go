package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "https://www.byha.org/sitemap.xml", Normalize("https://www.byha.org", "/sitemap.xml"))
	assert.Equal(t, "https://www.byha.org/page/show/9236045", Normalize("https://www.byha.org/page/show/1", "9236045"))
	assert.Equal(t, "javascript:void(0)", Normalize("https://www.byha.org", "javascript:void(0)"))
	assert.Equal(t, "webcal://www.byha.org/ical_feed?tags=1", Normalize("https://www.byha.org", "webcal://www.byha.org/ical_feed?tags=1"))
	assert.Equal(t, "https://www.byha.org/", Normalize("https://www.byha.org", ""))
}

func TestAbsoluteURL(t *testing.T) {
	for _, href := range []string{"", "  ", "#", "/", "javascript:void(0)", "mailto:a@b.org", "http://#top", "https://#", "ftp://x.org/f", "tel:5551234"} {
		_, ok := AbsoluteURL("https://www.byha.org", href)
		assert.False(t, ok, href)
	}
	abs, ok := AbsoluteURL("https://www.byha.org/page/show/1", " /page/show/2 ")
	assert.True(t, ok)
	assert.Equal(t, "https://www.byha.org/page/show/2", abs)
}

func TestSameHostURL(t *testing.T) {
	base := "https://www.byha.org"
	host := "www.byha.org"

	abs, ok := SameHostURL(base, "/page/show/9236045-bantam-a", host)
	assert.True(t, ok)
	assert.Equal(t, "https://www.byha.org/page/show/9236045-bantam-a", abs)

	for _, href := range []string{
		"https://www.tonkahockey.org/page/show/1",
		"/news_article/show/1",
		"/register/form/1",
		"/trophycase",
		"/attachments/document/123",
	} {
		_, ok := SameHostURL(base, href, host)
		assert.False(t, ok, href)
	}
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "www.byha.org", Hostname("https://WWW.byha.org:443/x"))
	assert.Equal(t, "https://www.byha.org", Origin("https://www.byha.org/page/show/1"))
	assert.Equal(t, "", Origin("not a url"))
	assert.True(t, IsLayoutTab("https://x.org/Layout_Container/show_layout_tab?id=1"))
	assert.True(t, HasSubseason("https://x.org/page/show/1?subseason=99"))
	assert.False(t, HasSubseason("https://x.org/page/show/1"))
}
