package game

import (
	"reflect"
	"testing"

	"github.com/charadle/charadle/internal/catalog"
)

func lk(id string) catalog.Lookup { return catalog.Lookup{ID: id, Name: "n-" + id} }

func TestComparePartialOverlap(t *testing.T) {
	guess := catalog.Character{
		ID:      "g",
		Age:     20,
		State:   lk("x"),
		Classes: []catalog.Lookup{lk("warrior"), lk("mage")},
	}
	target := catalog.Character{
		ID:      "t",
		Age:     30,
		State:   lk("x"),
		Classes: []catalog.Lookup{lk("mage"), lk("rogue")},
	}

	fb := Compare(guess, target)
	if fb.Correct {
		t.Fatal("different ids must not be correct")
	}
	if !fb.State {
		t.Fatal("matching state should be flagged")
	}
	if fb.Age {
		t.Fatal("different ages should not match")
	}
	want := []ItemMatch{
		{ID: "warrior", Name: "n-warrior", Match: false},
		{ID: "mage", Name: "n-mage", Match: true},
	}
	if !reflect.DeepEqual(fb.Classes, want) {
		t.Fatalf("classes = %+v, want %+v", fb.Classes, want)
	}
}

// Each item's verdict must depend only on membership in the target set, not
// on the order either set was built in.
func TestCompareOrderIndependent(t *testing.T) {
	guess := catalog.Character{
		ID:     "g",
		Places: []catalog.Lookup{lk("a"), lk("b"), lk("c")},
	}
	t1 := catalog.Character{ID: "t", Places: []catalog.Lookup{lk("c"), lk("a")}}
	t2 := catalog.Character{ID: "t", Places: []catalog.Lookup{lk("a"), lk("c")}}

	fb1 := Compare(guess, t1)
	fb2 := Compare(guess, t2)
	if !reflect.DeepEqual(fb1, fb2) {
		t.Fatalf("feedback differs across target orderings: %+v vs %+v", fb1, fb2)
	}
	for i, want := range []bool{true, false, true} {
		if fb1.Places[i].Match != want {
			t.Fatalf("places[%d].Match = %v, want %v", i, fb1.Places[i].Match, want)
		}
	}
}

func TestCompareIdempotent(t *testing.T) {
	guess := catalog.Character{ID: "g", Age: 44, Races: []catalog.Lookup{lk("elf")}}
	target := catalog.Character{ID: "g", Age: 44, Races: []catalog.Lookup{lk("elf")}}

	first := Compare(guess, target)
	for i := 0; i < 5; i++ {
		if got := Compare(guess, target); !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d diverged: %+v vs %+v", i, got, first)
		}
	}
	if !first.Correct || !first.Age || !first.Races[0].Match {
		t.Fatalf("identical characters should fully match: %+v", first)
	}
}

func TestCompareEmptyStateNeverMatches(t *testing.T) {
	fb := Compare(catalog.Character{ID: "a"}, catalog.Character{ID: "b"})
	if fb.State {
		t.Fatal("two missing states must not count as a match")
	}
}
