package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// Profile extracts the enrichment fields from a member profile document.
type Profile struct {
	content     string
	firstName   Strategy
	lastName    Strategy
	contactName Strategy
	phone       Strategy
	email       Strategy
	website     Strategy
	memberType  Strategy
	city        Strategy
	province    Strategy
	address     Strategy
}

// NewProfile builds the per-field strategy chains from the selectors.
func NewProfile(sel ProfileSelectors) *Profile {
	website := make([]Strategy, 0, len(sel.Website)+1)
	for _, s := range sel.Website {
		website = append(website, AbsHref(s))
	}
	website = append(website, ExternalLink())

	p := &Profile{
		content:     sel.Content,
		contactName: Chain(Texts(sel.ContactName...)...),
		phone:       Chain(append([]Strategy{SchemeTarget("tel:")}, Texts(sel.Phone...)...)...),
		email:       Chain(SchemeTarget("mailto:"), Text(`a[href^="mailto:"]`)),
		website:     Chain(website...),
		memberType:  Chain(Texts(sel.MemberType...)...),
		city:        Chain(Texts(sel.City...)...),
		province:    Chain(Texts(sel.Province...)...),
		address:     Chain(Texts(sel.Address...)...),
	}
	if sel.FirstName != "" {
		p.firstName = Chain(Text(sel.FirstName))
	}
	if sel.LastName != "" {
		p.lastName = Chain(Text(sel.LastName))
	}
	return p
}

// Extract reads the profile fields from doc.
func (p *Profile) Extract(doc *goquery.Document) member.Profile {
	if doc == nil {
		return member.Profile{}
	}
	s := Scope{Sel: doc.Selection, Base: doc.Url}

	city, province := p.city(s), p.province(s)
	if city == "" && province == "" {
		city, province = SplitAddress(p.address(s))
	}
	return member.Profile{
		ContactName: p.name(s),
		Phone:       p.phone(s),
		Email:       p.email(s),
		City:        city,
		Province:    province,
		Website:     p.website(s),
		MemberType:  p.memberType(s),
	}
}

func (p *Profile) name(s Scope) string {
	parts := make([]string, 0, 2)
	for _, st := range []Strategy{p.firstName, p.lastName} {
		if st == nil {
			continue
		}
		if v := st(s); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return p.contactName(s)
}

// ContentSelector is the selector a profile page is waited on.
func (p *Profile) ContentSelector() string {
	return p.content
}
