package matcher

import (
	"context"
	"math"

	"smartattend/internal/identity"
	"smartattend/internal/qr"
)

// Resolver turns one captured frame into an identity. ok=false with a nil
// error means nothing usable was in this frame and the caller should keep
// polling. Resolvers never touch the ledger; recording and notification
// belong to the orchestration layer.
type Resolver interface {
	Resolve(ctx context.Context, frame []byte) (identityName string, ok bool, err error)
}

// Oracle extracts face embeddings from an encoded frame.
type Oracle interface {
	Embed(ctx context.Context, image []byte) ([][]float32, error)
}

// FaceResolver matches detected faces against the enrolled identities.
//
// The decision rule is Euclidean distance against a fixed threshold, and
// the first enrolled entry under the threshold wins — insertion order, not
// closest distance. That tie-break is inherited behavior and kept on
// purpose; see DESIGN.md before changing it.
type FaceResolver struct {
	oracle    Oracle
	store     *identity.Store
	threshold float64
}

// NewFaceResolver builds a resolver over the oracle and enrolled store.
// threshold <= 0 falls back to 0.6, the oracle family's standard cutoff.
func NewFaceResolver(oracle Oracle, store *identity.Store, threshold float64) *FaceResolver {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &FaceResolver{oracle: oracle, store: store, threshold: threshold}
}

// Resolve extracts an embedding per face in the frame and scans the store
// in insertion order for each.
func (r *FaceResolver) Resolve(ctx context.Context, frame []byte) (string, bool, error) {
	probes, err := r.oracle.Embed(ctx, frame)
	if err != nil {
		return "", false, err
	}
	for _, probe := range probes {
		for _, e := range r.store.Entries() {
			if distance(probe, e.Encoding) <= r.threshold {
				return e.Name, true, nil
			}
		}
	}
	return "", false, nil
}

// distance is the Euclidean distance between two embeddings. Mismatched
// lengths never match.
func distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// QRResolver accepts any decoded QR payload as an identity, verbatim. There
// is deliberately no existence check against the enrolled store: a decoded
// string is immediately an identity. The first payload in a frame wins.
type QRResolver struct {
	decode func(frame []byte) (string, bool)
}

// NewQRResolver builds a resolver over the standard frame decoder.
func NewQRResolver() *QRResolver {
	return &QRResolver{decode: qr.DecodeFrame}
}

// Resolve decodes the frame.
func (r *QRResolver) Resolve(_ context.Context, frame []byte) (string, bool, error) {
	payload, ok := r.decode(frame)
	if !ok || payload == "" {
		return "", false, nil
	}
	return payload, true, nil
}
