package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

func TestProfileExtractDefaults(t *testing.T) {
	t.Parallel()

	sel := DefaultProfileSelectors()
	html := `<html><body><div id="idContent">
<div class="profileHeaderContainer"><h3>Regular Member</h3></div>
<span id="` + sel.FirstName[1:] + `">Jane</span>
<span id="` + sel.LastName[1:] + `">Doe</span>
<a href="mailto:jane@acme.test">jane@acme.test</a>
<a href="tel:416-555-0100">416-555-0100</a>
<a href="/Sys/Login">login</a>
<a href="https://acme.test/">https://acme.test/</a>
<span id="` + sel.City[0][1:] + `">Toronto</span>
<span id="` + sel.Province[0][1:] + `">Ontario</span>
</div></body></html>`

	got := NewProfile(sel).Extract(parse(t, html, "https://example.org/Sys/PublicProfile/1"))

	assert.Equal(t, member.Profile{
		ContactName: "Jane Doe",
		Phone:       "416-555-0100",
		Email:       "jane@acme.test",
		City:        "Toronto",
		Province:    "Ontario",
		Website:     "https://acme.test/",
		MemberType:  "Regular Member",
	}, got)
}

func TestProfileExtractFallbacks(t *testing.T) {
	t.Parallel()

	html := `<div>
<div class="profileHeaderContainer"><h2>Acme Owner</h2></div>
<span class="fieldPhone">(905) 555-0199</span>
<span class="website"><a href="/out/acme">site</a></span>
<span class="address">1 Main St, Kingston, ON</span>
</div>`

	got := NewProfile(DefaultProfileSelectors()).Extract(parse(t, html, "https://example.org/p/2"))

	assert.Equal(t, "Acme Owner", got.ContactName)
	assert.Equal(t, "(905) 555-0199", got.Phone)
	assert.Equal(t, "https://example.org/out/acme", got.Website)
	assert.Equal(t, "Kingston", got.City)
	assert.Equal(t, "ON", got.Province)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.MemberType)
}

func TestProfileExtractEmptyDocument(t *testing.T) {
	t.Parallel()

	p := NewProfile(ProfileSelectors{})
	assert.Equal(t, member.Profile{}, p.Extract(parse(t, `<html></html>`, "")))
	assert.Equal(t, member.Profile{}, p.Extract(nil))
}
