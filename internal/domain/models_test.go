package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestID_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want ID
		err  bool
	}{
		{`"abc"`, "abc", false},
		{`42`, "42", false},
		{`1700000000123`, "1700000000123", false},
		{`null`, "", false},
		{`true`, "", true},
		{`{}`, "", true},
	}
	for _, tc := range cases {
		var id ID
		err := json.Unmarshal([]byte(tc.in), &id)
		if tc.err {
			if err == nil {
				t.Fatalf("%s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if id != tc.want {
			t.Fatalf("%s: got %q want %q", tc.in, id, tc.want)
		}
	}
}

func TestIDGenerator_UniqueWithinSameMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	g := NewIDGenerator(func() time.Time { return fixed })
	seen := map[ID]bool{}
	for i := 0; i < 100; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if first := NewIDGenerator(func() time.Time { return fixed }).Next(); first != "1700000000000" {
		t.Fatalf("first id = %s", first)
	}
}

func TestCoercePrice(t *testing.T) {
	cases := map[float64]float64{
		12.5:        12.5,
		0:           0,
		-3:          0,
		math.NaN():  0,
		math.Inf(1): 0,
	}
	for in, want := range cases {
		if got := CoercePrice(in); got != want {
			t.Fatalf("CoercePrice(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestMerchant_CloneIsDeep(t *testing.T) {
	logo := "a.png"
	m := Merchant{ID: "1", Logo: &logo, Menu: []MenuItem{{ID: "i1", MerchantID: "1"}}}
	c := m.Clone()
	*c.Logo = "b.png"
	c.Menu[0].Name = "changed"
	if *m.Logo != "a.png" || m.Menu[0].Name != "" {
		t.Fatalf("clone shares memory with original")
	}
}

func TestMerchantPatch_DistinguishesNullFromAbsent(t *testing.T) {
	logo := "x.png"
	phone := "555"
	m := Merchant{ID: "1", Name: "A", Logo: &logo, Phone: &phone}

	var p MerchantPatch
	if err := json.Unmarshal([]byte(`{"name":"B","logo":null}`), &p); err != nil {
		t.Fatal(err)
	}
	out := p.Apply(m)
	if out.Name != "B" {
		t.Fatalf("name not applied")
	}
	if out.Logo != nil {
		t.Fatalf("logo should be cleared")
	}
	if out.Phone == nil || *out.Phone != "555" {
		t.Fatalf("absent phone must be untouched")
	}
	if m.Name != "A" || m.Logo == nil {
		t.Fatalf("Apply mutated its input")
	}
}

func TestMenuItemPatch_CoercesPrice(t *testing.T) {
	neg := -1.0
	it := MenuItemPatch{Price: &neg}.Apply(MenuItem{ID: "1", Price: 9})
	if it.Price != 0 {
		t.Fatalf("price = %v", it.Price)
	}
}
