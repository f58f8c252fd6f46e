package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(company, profileURL, text string) Card {
	r := Record{Company: company, ProfileURL: profileURL}
	return Card{Record: r, Key: DedupeKey(r, text)}
}

func TestDedupeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x/p/1", DedupeKey(Record{ProfileURL: "https://x/p/1"}, "Acme"))
	assert.Equal(t, "  Acme\n Toronto ", DedupeKey(Record{}, "  Acme\n Toronto "))
}

func TestDedupeFirstSeenWins(t *testing.T) {
	t.Parallel()

	in := []Card{
		card("Acme", "https://x/p/1", "Acme"),
		card("Beta", "", "Beta card"),
		card("Acme (dup)", "https://x/p/1", "Acme again"),
		card("Gamma", "https://x/p/3", "Gamma"),
		card("Beta (dup)", "", "Beta card"),
	}

	got := Dedupe(in)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Acme", "Beta", "Gamma"}, companies(got))
}

func TestDedupeIsIdempotent(t *testing.T) {
	t.Parallel()

	lists := [][]Card{
		nil,
		{card("A", "", "a")},
		{card("A", "u1", "a"), card("B", "u1", "b"), card("C", "", "a"), card("D", "", "a")},
		{card("A", "u1", ""), card("B", "u2", ""), card("C", "u3", ""), card("D", "u2", ""), card("E", "u1", "")},
	}
	for _, l := range lists {
		once := Dedupe(l)
		twice := Dedupe(once)
		assert.Equal(t, once, twice)
		assert.LessOrEqual(t, len(once), len(l))
	}
}

func TestDedupePreservesFirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	in := []Card{
		card("3", "k3", ""), card("1", "k1", ""), card("3b", "k3", ""),
		card("2", "k2", ""), card("1b", "k1", ""),
	}
	got := Dedupe(in)
	keys := make([]string, len(got))
	for i, c := range got {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"k3", "k1", "k2"}, keys)
}

func TestRecords(t *testing.T) {
	t.Parallel()

	got := Records([]Card{card("A", "u1", ""), card("B", "", "b")})
	assert.Equal(t, []Record{{Company: "A", ProfileURL: "u1"}, {Company: "B"}}, got)
}

func companies(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Record.Company
	}
	return out
}
