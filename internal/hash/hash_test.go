package hash

import (
	"strings"
	"testing"

	"github.com/zeromine/zeromine/internal/contract"
)

func TestResultDeterministic(t *testing.T) {
	p := contract.ResultPayload{T: 14.134725, RootVal: 1e-14, Meta: contract.Meta{Method: "bisect", Iters: 40}}
	h1 := Result(p)
	h2 := Result(p)
	if h1 != h2 {
		t.Errorf("Result() not deterministic: %s != %s", h1, h2)
	}
	if !strings.HasPrefix(h1, Prefix) {
		t.Errorf("hash %q missing %q prefix", h1, Prefix)
	}
}

func TestResultIgnoresVolatileMeta(t *testing.T) {
	a := contract.ResultPayload{T: 21.022040, RootVal: 2e-13, Meta: contract.Meta{Method: "bisect", Iters: 17}}
	b := a
	b.Meta.Iters = 9001
	if Result(a) != Result(b) {
		t.Error("results differing only in iteration count must hash identically")
	}
}

func TestResultDistinguishesSemanticFields(t *testing.T) {
	base := contract.ResultPayload{T: 1.0, RootVal: 1e-12, Meta: contract.Meta{Method: "bisect"}}

	other := base
	other.T = 2.0
	if Result(base) == Result(other) {
		t.Error("different t must produce different hashes")
	}

	other = base
	other.RootVal = 2e-12
	if Result(base) == Result(other) {
		t.Error("different root_val must produce different hashes")
	}

	other = base
	other.Meta.Method = "newton"
	if Result(base) == Result(other) {
		t.Error("different method must produce different hashes")
	}
}

func TestChain(t *testing.T) {
	body := []byte(`{"seq":1}`)
	first := Chain("", body)
	second := Chain(first, body)
	if first == second {
		t.Error("chained digest must depend on the previous digest")
	}
	if Chain(first, body) != second {
		t.Error("Chain() not deterministic")
	}
}
