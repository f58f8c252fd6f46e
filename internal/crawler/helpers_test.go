package crawler

import (
	"fmt"
	"strings"
	"time"

	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
)

const (
	testBase   = "https://dir.example.com/member-directory"
	nameField  = "FunctionalBlock1_ctl00_ctl00_memberProfile_MemberForm_memberFormRepeater_"
	firstField = nameField + "ctl00_TextBoxLabel10595865"
	lastField  = nameField + "ctl01_TextBoxLabel10595866"
)

type testCard struct {
	id      int
	company string
	city    string
}

func listingHTML(next bool, cards ...testCard) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="directory">`)
	for _, c := range cards {
		if c.id == 0 {
			fmt.Fprintf(&b, `<div class="member-card"><span class="company">%s</span></div>`, c.company)
			continue
		}
		fmt.Fprintf(&b,
			`<a class="member-card" href="/Sys/PublicProfile/%d"><span class="company">%s</span><span class="address">%s, ON</span></a>`,
			c.id, c.company, c.city)
	}
	b.WriteString(`</div>`)
	if next {
		b.WriteString(`<a rel="next" href="?page=next">Next</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func profileHTML(first, last, email string) string {
	return fmt.Sprintf(`<html><body><div id="idContent">
<div class="profileHeaderContainer"><h3>Supplier Member</h3></div>
<span id="%s">%s</span><span id="%s">%s</span>
<a href="mailto:%s">%s</a>
<a href="tel:416-555-0100">Call</a>
<span id="%sctl08_TextBoxLabel10596140">Toronto</span>
<span id="%sctl09_TextBoxLabel10596141">ON</span>
</div></body></html>`, firstField, first, lastField, last, email, email, nameField, nameField)
}

func profileURL(id int) string {
	return fmt.Sprintf("https://dir.example.com/Sys/PublicProfile/%d", id)
}

func pageURL(n int) string {
	if n == 1 {
		return testBase
	}
	return fmt.Sprintf("%s?page=%d", testBase, n)
}

func testPaginator(maxPages int) *Paginator {
	return NewPaginator(PaginatorConfig{
		BaseURL:           testBase,
		MaxPages:          maxPages,
		NavigationTimeout: time.Second,
		SelectorTimeout:   10 * time.Millisecond,
	}, extract.NewListing(extract.DefaultListingSelectors()), nil, nil)
}
