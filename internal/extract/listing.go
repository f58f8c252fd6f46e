package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// Listing extracts member cards from a directory listing page.
type Listing struct {
	card        string
	next        string
	company     Strategy
	contactName Strategy
	phone       Strategy
	email       Strategy
	website     Strategy
	address     Strategy
	memberType  Strategy
	profileURL  Strategy
}

// NewListing builds the per-field strategy chains from the selectors.
func NewListing(sel ListingSelectors) *Listing {
	company := append(Texts(sel.Company...), FullText())
	website := make([]Strategy, 0, len(sel.Website))
	for _, s := range sel.Website {
		website = append(website, Href(s))
	}
	return &Listing{
		card:        sel.Card,
		next:        sel.NextPage,
		company:     Chain(company...),
		contactName: Chain(Texts(sel.ContactName...)...),
		phone:       Chain(SchemeTarget("tel:")),
		email:       Chain(SchemeTarget("mailto:")),
		website:     Chain(website...),
		address:     Chain(Texts(sel.Address...)...),
		memberType:  Chain(Texts(sel.MemberType...)...),
		profileURL:  Chain(OwnHref()),
	}
}

// Cards returns one card per element matching the card selector, in document
// order. Duplicates are kept; see member.Dedupe.
func (l *Listing) Cards(doc *goquery.Document) []member.Card {
	if doc == nil || l.card == "" {
		return nil
	}
	var cards []member.Card
	doc.Find(l.card).Each(func(_ int, s *goquery.Selection) {
		r := l.Record(Scope{Sel: s, Base: doc.Url})
		cards = append(cards, member.Card{Record: r, Key: member.DedupeKey(r, s.Text())})
	})
	return cards
}

// Record extracts every listing field from a single card.
func (l *Listing) Record(s Scope) member.Record {
	city, province := SplitAddress(l.address(s))
	return member.Record{
		Company:     l.company(s),
		ContactName: l.contactName(s),
		Phone:       l.phone(s),
		Email:       l.email(s),
		City:        city,
		Province:    province,
		Website:     l.website(s),
		MemberType:  l.memberType(s),
		ProfileURL:  l.profileURL(s),
	}
}

// HasNext reports whether the page offers an enabled next-page link.
func (l *Listing) HasNext(doc *goquery.Document) bool {
	if doc == nil || l.next == "" {
		return false
	}
	return doc.Find(l.next).Length() > 0
}

// CardSelector is the selector a listing page is waited on.
func (l *Listing) CardSelector() string {
	return l.card
}
