package catalog

import "testing"

func TestResolveLayerNameBlk(t *testing.T) {
	n := Node{Sources: []Source{{Name: "blk.3.attn_q.weight"}}}
	if got := ResolveLayerName(n); got != "blk.3" {
		t.Fatalf("got %q, want blk.3", got)
	}
}

func TestResolveLayerNameFirstSourceWins(t *testing.T) {
	// S5: first source resolves to blk.3, second would resolve to
	// output_norm — the first match wins and the second is never checked.
	n := Node{Sources: []Source{
		{Name: "blk.3.attn_q.weight"},
		{Name: "output_norm.weight"},
	}}
	if got := ResolveLayerName(n); got != "blk.3" {
		t.Fatalf("got %q, want blk.3", got)
	}
}

func TestResolveLayerNameOutputNormBeforeOutput(t *testing.T) {
	n := Node{Sources: []Source{{Name: "output_norm.weight"}}}
	if got := ResolveLayerName(n); got != "output_norm" {
		t.Fatalf("got %q, want output_norm", got)
	}
}

func TestResolveLayerNameOutputWeight(t *testing.T) {
	n := Node{Sources: []Source{{Name: "output.weight"}}}
	if got := ResolveLayerName(n); got != "output_weight" {
		t.Fatalf("got %q, want output_weight", got)
	}
}

func TestResolveLayerNameTokenEmbd(t *testing.T) {
	n := Node{Sources: []Source{{Name: "token_embd.weight"}}}
	if got := ResolveLayerName(n); got != "token_embd" {
		t.Fatalf("got %q, want token_embd", got)
	}
}

func TestResolveLayerNameUnrecognized(t *testing.T) {
	n := Node{Sources: []Source{{Name: "rope_freqs"}}}
	if got := ResolveLayerName(n); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestBlkPrefixRequiresSecondDot(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"blk":            {"", false},
		"blk.3":          {"", false},
		"blk.3.attn_q":   {"blk.3", true},
		"blk.12.ffn_gate.weight": {"blk.12", true},
	}
	for in, want := range cases {
		got, ok := blkPrefix(in)
		if ok != want.ok || got != want.want {
			t.Fatalf("blkPrefix(%q) = (%q, %v), want (%q, %v)", in, got, ok, want.want, want.ok)
		}
	}
}
