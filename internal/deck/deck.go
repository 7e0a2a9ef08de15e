package deck

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Deck represents an ordered deck of playing cards. Decks are ephemeral:
// they live for a single hand and are never persisted beyond it.
type Deck struct {
	cards []Card
}

// New creates a standard 52-card deck in canonical order
func New() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	return d
}

// FromCards builds a deck from an explicit card order. Used when restoring
// the undealt remainder of a hand's deck, and by deterministic tests.
func FromCards(cards []Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Shuffle randomizes the deck with a Fisher-Yates shuffle driven by the
// OS CSPRNG. Deals must be unpredictable to clients, so math/rand is not
// acceptable here.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := int(cryptoUint64() % uint64(i+1))
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

func cryptoUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process cannot safely deal cards.
		panic("deck: crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// Deal removes and returns the top card from the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DealN deals n cards from the deck
func (d *Deck) DealN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]Card, n)
	for i := range cards {
		cards[i], _ = d.Deal()
	}
	return cards
}

// Remaining returns the undealt cards in order
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Len returns the number of cards left in the deck
func (d *Deck) Len() int {
	return len(d.cards)
}

// Hash returns a hex SHA-256 over the cards' wire encoding in order.
// Persisting only the hash commits to a hand's shuffle without ever
// storing the card order itself.
func Hash(cards []Card) string {
	h := sha256.New()
	for _, c := range cards {
		h.Write([]byte(c.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
