package catalog

import "strings"

// Source is one named tensor as it appears in the weights file (e.g.
// "blk.3.attn_q.weight"). Node groups the sources that make up a single
// graph node — a node can touch more than one tensor, and the first
// source to resolve to a layer name wins.
type Source struct {
	Name string
}

type Node struct {
	Sources []Source
}

// ResolveLayerName maps a graph node to the catalogue layer name it
// belongs to, or "" if none of its sources match a known layer shape.
// Sources are checked in order and, within a source, rules are checked
// in the fixed priority blk > output_norm > output > token_embd; the
// first rule that matches wins and no further sources are examined.
func ResolveLayerName(n Node) string {
	for _, s := range n.Sources {
		if name, ok := blkPrefix(s.Name); ok {
			return name
		}
		if strings.Contains(s.Name, "output_norm") {
			return "output_norm"
		}
		if strings.Contains(s.Name, "output") {
			return "output_weight"
		}
		if strings.Contains(s.Name, "token_embd") {
			return "token_embd"
		}
	}
	return ""
}

// blkPrefix extracts "blk.N" off the front of a tensor name like
// "blk.3.attn_q.weight", requiring a true second dot so that the cut
// point is unambiguous. Names that start with "blk" but don't have two
// dots (e.g. a bare "blk" or "blk.3") fall through unmatched rather than
// being truncated wrong.
func blkPrefix(name string) (string, bool) {
	if !strings.HasPrefix(name, "blk") {
		return "", false
	}
	first := strings.IndexByte(name, '.')
	if first < 0 {
		return "", false
	}
	rest := name[first+1:]
	second := strings.IndexByte(rest, '.')
	if second < 0 {
		return "", false
	}
	return name[:first+1+second], true
}
