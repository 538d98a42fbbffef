package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type brokenKV struct{ err error }

func (b brokenKV) Load(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenKV) Save(context.Context, string, []byte) error   { return b.err }

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestGet_ReturnsDefault(t *testing.T) {
	ctx := context.Background()
	def := []item{{ID: "d"}}

	cases := []struct {
		name string
		kv   KV
	}{
		{"missing key", NewMemory()},
		{"store error", brokenKV{err: errors.New("disk on fire")}},
		{"corrupt document", func() KV {
			m := NewMemory()
			_ = m.Save(ctx, KeyMerchants, []byte("{not json"))
			return m
		}()},
		{"empty document", func() KV {
			m := NewMemory()
			_ = m.Save(ctx, KeyMerchants, nil)
			return m
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.kv, zerolog.Nop())
			got := Get(ctx, s, KeyMerchants, def)
			if len(got) != 1 || got[0].ID != "d" {
				t.Fatalf("expected default, got %+v", got)
			}
		})
	}
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	s := New(nil, zerolog.Nop())

	want := []item{{ID: "1", Name: "Cafe"}, {ID: "2", Name: "Bakery"}}
	if err := Set(ctx, s, KeyRecommendations, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := Get[[]item](ctx, s, KeyRecommendations, nil)
	if len(got) != 2 || got[1].Name != "Bakery" {
		t.Fatalf("got %+v", got)
	}
}

func TestSet_NullClearsValue(t *testing.T) {
	ctx := context.Background()
	s := New(nil, zerolog.Nop())
	_ = Set(ctx, s, KeyUser, &item{ID: "admin"})
	if err := Set[*item](ctx, s, KeyUser, nil); err != nil {
		t.Fatalf("Set nil: %v", err)
	}
	if got := Get[*item](ctx, s, KeyUser, nil); got != nil {
		t.Fatalf("expected nil user, got %+v", got)
	}
}

func TestSet_PropagatesStoreError(t *testing.T) {
	s := New(brokenKV{err: errors.New("read-only")}, zerolog.Nop())
	if err := Set(context.Background(), s, KeyTheme, "dark"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReviewsKey(t *testing.T) {
	if got := ReviewsKey("42"); got != "reviews_42" {
		t.Fatalf("got %q", got)
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte(`"a"`)
	_ = m.Save(ctx, "k", buf)
	buf[1] = 'b'
	got, _ := m.Load(ctx, "k")
	if string(got) != `"a"` {
		t.Fatalf("store aliased caller buffer: %s", got)
	}
}
