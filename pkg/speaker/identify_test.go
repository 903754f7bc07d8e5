package speaker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/haivivi/voxprint/pkg/vecstore"
)

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("p%03d", n)
	}
}

// unit returns a 4-dimensional unit vector at the given angle in the
// first plane.
func unit(deg float64) []float32 {
	r := deg * math.Pi / 180
	return []float32{float32(math.Cos(r)), float32(math.Sin(r)), 0, 0}
}

func enrolled(t *testing.T) *vecstore.Memory {
	t.Helper()
	store, err := vecstore.NewMemory(4)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	opts := Options{NewID: counter()}
	if _, err := Enroll(ctx, store, "alice", "deepgram-alice-1.wav", [][]float32{unit(0), unit(5), unit(10)}, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := Enroll(ctx, store, "bob", "deepgram-bob-1.wav", [][]float32{unit(90), unit(95)}, opts); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestEnroll(t *testing.T) {
	store := enrolled(t)
	if store.Len() != 5 {
		t.Fatalf("Len = %d, want 5", store.Len())
	}
	p, ok := store.Get("p002")
	if !ok {
		t.Fatal("point p002 missing")
	}
	if p.Payload.Speaker != "alice" || p.Payload.Source != "deepgram-alice-1.wav" || p.Payload.Index != 1 {
		t.Errorf("payload = %+v", p.Payload)
	}
}

func TestEnrollDefaultIDsAreUnique(t *testing.T) {
	points, err := Points("alice", "a.wav", [][]float32{unit(0), unit(1), unit(2)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, p := range points {
		if len(p.ID) != 36 || seen[p.ID] {
			t.Errorf("bad or duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestEnrollLabels(t *testing.T) {
	h, err := NewHasher(4, 8, 1)
	if err != nil {
		t.Fatal(err)
	}
	points, err := Points("alice", "a.wav", [][]float32{unit(0)}, Options{Hasher: h})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := h.Label(unit(0))
	if points[0].Payload.Label != want {
		t.Errorf("label = %q, want %q", points[0].Payload.Label, want)
	}
}

func TestEnrollErrors(t *testing.T) {
	store, _ := vecstore.NewMemory(4)
	ctx := context.Background()
	if _, err := Enroll(ctx, store, "alice", "a.wav", nil, Options{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("no vectors: err = %v, want ErrEmpty", err)
	}
	_, err := Enroll(ctx, store, "alice", "a.wav", [][]float32{{1, 2}}, Options{})
	if !errors.Is(err, vecstore.ErrDimension) {
		t.Errorf("wrong dimension: err = %v, want vecstore.ErrDimension", err)
	}
}

func TestIdentify(t *testing.T) {
	store := enrolled(t)
	// Two vectors near alice, one near bob.
	v, err := Identify(context.Background(), store, [][]float32{unit(2), unit(8), unit(88)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Speaker != "alice" {
		t.Errorf("speaker = %q, want alice", v.Speaker)
	}
	if v.Total != 3 || v.Votes["alice"] != 2 || v.Votes["bob"] != 1 {
		t.Errorf("votes = %v, total = %d", v.Votes, v.Total)
	}
	if math.Abs(v.Share-2.0/3) > 1e-12 {
		t.Errorf("share = %v, want 2/3", v.Share)
	}
	if r := v.Ranking(); len(r) != 2 || r[0] != "alice" || r[1] != "bob" {
		t.Errorf("ranking = %v", r)
	}
}

func TestIdentifyMinScore(t *testing.T) {
	store := enrolled(t)
	// 45° from both speakers: cosine ≈ 0.7 to the nearest point.
	v, err := Identify(context.Background(), store, [][]float32{unit(50), unit(50), unit(93)}, Options{MinScore: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if v.Speaker != Unknown || v.Votes[Unknown] != 2 || v.Votes["bob"] != 1 {
		t.Errorf("verdict = %+v", v)
	}
}

func TestIdentifyLabel(t *testing.T) {
	store := enrolled(t)
	h, _ := NewHasher(4, 8, 9)
	v, err := Identify(context.Background(), store, [][]float32{unit(0), unit(10)}, Options{Hasher: h})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := h.Label([]float32{
		(unit(0)[0] + unit(10)[0]) / 2,
		(unit(0)[1] + unit(10)[1]) / 2,
		0, 0,
	})
	if v.Label != want {
		t.Errorf("label = %q, want %q", v.Label, want)
	}
}

func TestIdentifyErrors(t *testing.T) {
	ctx := context.Background()
	empty, _ := vecstore.NewMemory(4)
	if _, err := Identify(ctx, empty, [][]float32{unit(0)}, Options{}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("empty store: err = %v, want ErrNoMatch", err)
	}
	if _, err := Identify(ctx, empty, nil, Options{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("no vectors: err = %v, want ErrEmpty", err)
	}
	store := enrolled(t)
	if _, err := Identify(ctx, store, [][]float32{{1}}, Options{}); !errors.Is(err, vecstore.ErrDimension) {
		t.Errorf("wrong dimension: err = %v, want vecstore.ErrDimension", err)
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2, 3}, {3, 4, 5}})
	want := []float32{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Mean = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Mean[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := Mean(nil); got != nil {
		t.Errorf("Mean(nil) = %v, want nil", got)
	}
}
