package catalog

import "testing"

func TestFindByNameExactFoldedOnly(t *testing.T) {
	roster := []Character{
		{ID: "a", Name: "Aragorn"},
		{ID: "b", Name: "Arwen"},
	}
	if c := FindByName(roster, "aragorn"); c == nil || c.ID != "a" {
		t.Fatalf("case-insensitive exact match failed: %+v", c)
	}
	if c := FindByName(roster, "  ARWEN  "); c == nil || c.ID != "b" {
		t.Fatalf("trimmed match failed: %+v", c)
	}
	if c := FindByName(roster, "Ara"); c != nil {
		t.Fatalf("prefix must not match: %+v", c)
	}
	if c := FindByName(roster, ""); c != nil {
		t.Fatalf("empty token must not match: %+v", c)
	}
}

func TestFindByIDMissing(t *testing.T) {
	roster := []Character{{ID: "a", Name: "Aragorn"}}
	if c := FindByID(roster, "a"); c == nil {
		t.Fatal("existing id not found")
	}
	if c := FindByID(roster, "gone"); c != nil {
		t.Fatalf("deleted id resolved: %+v", c)
	}
}
