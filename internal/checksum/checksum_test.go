package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("title = \"Dune\""))
	if a != Sum([]byte("title = \"Dune\"")) {
		t.Fatal("same content, different sums")
	}
	if a == Sum([]byte("title = \"Dune Messiah\"")) {
		t.Fatal("different content, same sum")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestETag_Quoted(t *testing.T) {
	data := []byte("x")
	if got := ETag(data); got != `"`+Sum(data)+`"` {
		t.Errorf("ETag = %s", got)
	}
}

func TestMatches(t *testing.T) {
	data := []byte("# Alien")
	sum := Sum(data)
	cases := []struct {
		header string
		want   bool
	}{
		{"", true},
		{"*", true},
		{sum, true},
		{`"` + sum + `"`, true},
		{`W/"` + sum + `"`, true},
		{`"stale", "` + sum + `"`, true},
		{`"stale"`, false},
		{Sum([]byte("# Aliens")), false},
	}
	for _, c := range cases {
		if got := Matches(c.header, data); got != c.want {
			t.Errorf("Matches(%q) = %v, want %v", c.header, got, c.want)
		}
	}
}
