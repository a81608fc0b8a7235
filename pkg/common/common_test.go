package common

import "testing"

func TestRelation_IsHierarchy(t *testing.T) {
	tests := []struct {
		relation Relation
		want     bool
	}{
		{RelHasHeading, true},
		{RelHasSubheading, true},
		{RelHasCode, true},
		{RelSiblingOf, false},
		{RelSimilarTo, false},
	}
	for _, tc := range tests {
		if got := tc.relation.IsHierarchy(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.relation, tc.want, got)
		}
	}
}

func TestRecord_Document(t *testing.T) {
	rec := Record{
		HSNCode:               "40111010",
		ItemDescription:       "New pneumatic tyres for motor cars",
		ChapterDescription:    "Rubber and articles thereof",
		HeadingDescription:    "New pneumatic tyres, of rubber",
		SubheadingDescription: "Of a kind used on motor cars",
	}

	if rec.DocumentID() != "hsn_40111010" {
		t.Fatalf("unexpected document id %q", rec.DocumentID())
	}

	want := "Product: New pneumatic tyres for motor cars. " +
		"Category: Of a kind used on motor cars. " +
		"Broader Group: New pneumatic tyres, of rubber. " +
		"General Chapter: Rubber and articles thereof. " +
		"HSN Code is 40111010."
	if got := rec.DocumentText(); got != want {
		t.Fatalf("unexpected document text:\n  got  %q\n  want %q", got, want)
	}
}

func TestDocuments(t *testing.T) {
	records := []Record{
		{HSNCode: "40111010", ItemDescription: "tyres"},
		{HSNCode: "40011010", ItemDescription: "latex"},
	}
	docs := Documents(records)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "hsn_40111010" || docs[1].ID != "hsn_40011010" {
		t.Fatalf("unexpected ids %s, %s", docs[0].ID, docs[1].ID)
	}
	if docs[0].Metadata.HSNCode != "40111010" {
		t.Fatal("expected metadata to carry the source record")
	}
}
