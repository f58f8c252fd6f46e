package member

// Card is a record extracted from a listing card together with the identity
// key used to collapse duplicate cards.
type Card struct {
	Record Record
	Key    string
}

// DedupeKey returns the profile URL when present, otherwise the raw visible
// text of the listing card.
func DedupeKey(r Record, cardText string) string {
	if r.ProfileURL != "" {
		return r.ProfileURL
	}
	return cardText
}

// Dedupe keeps the first card seen for every key and drops the rest. The
// relative order of the kept cards is the order of first appearance.
func Dedupe(cards []Card) []Card {
	seen := make(map[string]struct{}, len(cards))
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if _, ok := seen[c.Key]; ok {
			continue
		}
		seen[c.Key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Records strips the keys from a card list.
func Records(cards []Card) []Record {
	out := make([]Record, len(cards))
	for i, c := range cards {
		out[i] = c.Record
	}
	return out
}
