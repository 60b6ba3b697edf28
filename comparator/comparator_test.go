package comparator

import (
	"bytes"
	"testing"
)

func TestBytewiseCompare(t *testing.T) {
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte("abc"), []byte("abd"), -1},
		{[]byte("abc"), []byte("abc"), 0},
		{[]byte("abd"), []byte("abc"), 1},
		{[]byte(""), []byte("a"), -1},
	}
	for _, c := range cases {
		got := sign(Bytewise.Compare(c.a, c.b))
		if got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestName(t *testing.T) {
	if Bytewise.Name() == "" {
		t.Fatal("comparator must have a non-empty name")
	}
}

func TestSeparatorBetween(t *testing.T) {
	sep := Bytewise.Separator([]byte("abc123"), []byte("abd456"))
	if Bytewise.Compare(sep, []byte("abc123")) < 0 {
		t.Fatalf("separator %q < from", sep)
	}
	if Bytewise.Compare(sep, []byte("abd456")) >= 0 {
		t.Fatalf("separator %q >= to", sep)
	}
}

func TestSeparatorPrefix(t *testing.T) {
	// "abc" is a prefix of "abcdef" -> no shortening possible.
	sep := Bytewise.Separator([]byte("abc"), []byte("abcdef"))
	if !bytes.Equal(sep, []byte("abc")) {
		t.Fatalf("expected unchanged from, got %q", sep)
	}
}

func TestSuccessor(t *testing.T) {
	succ := Bytewise.Successor([]byte("abc"))
	if Bytewise.Compare(succ, []byte("abc")) < 0 {
		t.Fatalf("successor %q < key", succ)
	}

	allFF := Bytewise.Successor([]byte{0xff, 0xff})
	if !bytes.Equal(allFF, []byte{0xff, 0xff}) {
		t.Fatalf("successor of all-0xff should be unchanged, got %v", allFF)
	}
}
