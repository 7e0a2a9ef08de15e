package deck

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		suit Suit
		rank Rank
	}{
		{"Ah", Hearts, Ace},
		{"Ts", Spades, Ten},
		{"2c", Clubs, Two},
		{"Kd", Diamonds, King},
		{"9h", Hearts, Nine},
	}
	for _, tc := range cases {
		card, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if card.Suit != tc.suit || card.Rank != tc.rank {
			t.Errorf("Parse(%q) = %v, want suit=%v rank=%v", tc.in, card, tc.suit, tc.rank)
		}
		if card.String() != tc.in {
			t.Errorf("String() round trip: got %q, want %q", card.String(), tc.in)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "A", "Ahh", "1h", "Ax", "10s", "ah"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestCardJSONEncoding(t *testing.T) {
	t.Parallel()

	cards := []Card{MustParse("Ah"), MustParse("Ts")}
	data, err := json.Marshal(cards)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["Ah","Ts"]` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var decoded []Card
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[0] != cards[0] || decoded[1] != cards[1] {
		t.Errorf("round trip mismatch: %v", decoded)
	}
}

func TestEncodeParseAll(t *testing.T) {
	t.Parallel()

	encoded := []string{"Qd", "Jc", "7s"}
	cards, err := ParseAll(encoded)
	if err != nil {
		t.Fatal(err)
	}
	back := Encode(cards)
	for i := range encoded {
		if back[i] != encoded[i] {
			t.Errorf("index %d: got %q, want %q", i, back[i], encoded[i])
		}
	}
}
