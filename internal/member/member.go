// Package member defines the directory member record, its merge policies and
// the first-seen-wins deduplicator used between the listing crawl and the
// profile enrichment stage.
package member

import "fmt"

// Record is one directory member. Empty strings mean the field is absent.
type Record struct {
	Company     string `json:"company"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Website     string `json:"website"`
	MemberType  string `json:"memberType"`
	ProfileURL  string `json:"profileUrl"`
}

// Valid reports whether the record carries a company name. Invalid records are
// dropped before export.
func (r Record) Valid() bool {
	return r.Company != ""
}

// Profile holds the fields a profile page can contribute to a Record.
type Profile struct {
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Website     string `json:"website"`
	MemberType  string `json:"memberType"`
}

// MergePolicy decides how profile fields combine with listing fields.
type MergePolicy string

const (
	// MergeOverwrite replaces every listing field with the profile value, even
	// when the profile value is empty.
	MergeOverwrite MergePolicy = "overwrite"
	// MergeFillEmpty only takes profile values that are non-empty.
	MergeFillEmpty MergePolicy = "fill"
)

// ParseMergePolicy validates a configured policy name. An empty name selects
// MergeOverwrite.
func ParseMergePolicy(raw string) (MergePolicy, error) {
	switch MergePolicy(raw) {
	case "", MergeOverwrite:
		return MergeOverwrite, nil
	case MergeFillEmpty:
		return MergeFillEmpty, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", raw)
	}
}

// Merge combines a listing record with the profile extracted for it.
// Company and ProfileURL always come from the listing.
func Merge(r Record, p Profile, policy MergePolicy) Record {
	pick := func(listing, profile string) string {
		if policy == MergeFillEmpty && profile == "" {
			return listing
		}
		return profile
	}
	r.ContactName = pick(r.ContactName, p.ContactName)
	r.Phone = pick(r.Phone, p.Phone)
	r.Email = pick(r.Email, p.Email)
	r.City = pick(r.City, p.City)
	r.Province = pick(r.Province, p.Province)
	r.Website = pick(r.Website, p.Website)
	r.MemberType = pick(r.MemberType, p.MemberType)
	return r
}

// FilterValid returns the valid records in their original order.
func FilterValid(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}
