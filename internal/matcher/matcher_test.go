package matcher

import (
	"context"
	"errors"
	"testing"

	"smartattend/internal/identity"
)

type stubOracle struct {
	probes [][]float32
	err    error
}

func (o *stubOracle) Embed(context.Context, []byte) ([][]float32, error) {
	return o.probes, o.err
}

func TestFaceResolver_InsertionOrderTieBreak(t *testing.T) {
	store := identity.NewStore()
	// Both entries are under the threshold for the probe, but the second is
	// strictly closer. The first enrolled entry still wins.
	store.Add("first", []float32{0.5, 0.0})
	store.Add("closer", []float32{0.1, 0.0})

	oracle := &stubOracle{probes: [][]float32{{0.0, 0.0}}}
	r := NewFaceResolver(oracle, store, 0.6)

	name, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "first" {
		t.Errorf("expected insertion-order winner %q, got %q", "first", name)
	}
}

func TestFaceResolver_NoMatchUnderThreshold(t *testing.T) {
	store := identity.NewStore()
	store.Add("alice", []float32{10, 10, 10})

	oracle := &stubOracle{probes: [][]float32{{0, 0, 0}}}
	r := NewFaceResolver(oracle, store, 0.6)

	_, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("expected no match for a distant probe")
	}
}

func TestFaceResolver_ExactProbeMatches(t *testing.T) {
	store := identity.NewStore()
	store.Add("alice", []float32{0.25, 0.5, 0.75})

	oracle := &stubOracle{probes: [][]float32{{0.25, 0.5, 0.75}}}
	r := NewFaceResolver(oracle, store, 0.6)

	name, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || name != "alice" {
		t.Errorf("expected alice, got %q (ok=%v)", name, ok)
	}
}

func TestFaceResolver_DimensionMismatchNeverMatches(t *testing.T) {
	store := identity.NewStore()
	store.Add("alice", []float32{0.1, 0.2})

	oracle := &stubOracle{probes: [][]float32{{0.1, 0.2, 0.3}}}
	r := NewFaceResolver(oracle, store, 100)

	_, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("mismatched embedding lengths must not match")
	}
}

func TestFaceResolver_EmptyFrame(t *testing.T) {
	store := identity.NewStore()
	store.Add("alice", []float32{0.1})

	oracle := &stubOracle{} // zero faces detected
	r := NewFaceResolver(oracle, store, 0.6)

	_, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("expected no match when no faces are detected")
	}
}

func TestFaceResolver_OracleErrorPropagates(t *testing.T) {
	oracleErr := errors.New("service down")
	r := NewFaceResolver(&stubOracle{err: oracleErr}, identity.NewStore(), 0.6)

	_, _, err := r.Resolve(context.Background(), []byte("frame"))
	if !errors.Is(err, oracleErr) {
		t.Fatalf("expected oracle error to propagate, got %v", err)
	}
}

func TestQRResolver_AcceptsUnknownPayload(t *testing.T) {
	// No existence check: any decoded payload is an identity.
	r := &QRResolver{decode: func([]byte) (string, bool) { return "S1042", true }}

	name, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || name != "S1042" {
		t.Errorf("expected S1042 accepted verbatim, got %q (ok=%v)", name, ok)
	}
}

func TestQRResolver_NoCodeInFrame(t *testing.T) {
	r := &QRResolver{decode: func([]byte) (string, bool) { return "", false }}

	_, ok, err := r.Resolve(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("expected no resolution for a frame without a code")
	}
}
