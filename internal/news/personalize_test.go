package news

import (
	"math/rand/v2"
	"testing"
)

func sampleArticles() []Article {
	return []Article{
		{ID: "1", Category: "Sports"},
		{ID: "2", Category: "Health"},
		{ID: "3", Category: "Technology"},
		{ID: "4", Category: "World"},
		{ID: "5", Category: "health"},
		{ID: "6", Category: "Business"},
	}
}

func TestPersonalizePreferredLead(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		got := personalize(sampleArticles(), []string{"health", "technology"}, rand.New(rand.NewPCG(seed, 0)))
		if len(got) != 6 {
			t.Fatalf("seed %d: expected 6 articles, got %d", seed, len(got))
		}
		for i, a := range got[:3] {
			switch a.ID {
			case "2", "3", "5":
			default:
				t.Errorf("seed %d: position %d holds non-preferred article %s", seed, i, a.ID)
			}
		}
	}
}

func TestPersonalizeSameSeedSameOrder(t *testing.T) {
	a := personalize(sampleArticles(), []string{"world"}, rand.New(rand.NewPCG(7, 7)))
	b := personalize(sampleArticles(), []string{"world"}, rand.New(rand.NewPCG(7, 7)))
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("expected identical order for identical seed, diverged at %d", i)
		}
	}
	if a[0].ID != "4" {
		t.Errorf("expected the only preferred article first, got %s", a[0].ID)
	}
}

func TestPersonalizeDoesNotMutateInput(t *testing.T) {
	in := sampleArticles()
	personalize(in, []string{"business"}, rand.New(rand.NewPCG(1, 1)))
	if in[0].ID != "1" || in[5].ID != "6" {
		t.Error("expected input order to be untouched")
	}
}

func TestKeepCategories(t *testing.T) {
	got := keepCategories(sampleArticles(), []string{"HEALTH"})
	if len(got) != 2 {
		t.Fatalf("expected 2 health articles, got %d", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "5" {
		t.Errorf("expected source order kept, got %s,%s", got[0].ID, got[1].ID)
	}

	if got := keepCategories(sampleArticles(), []string{"food"}); len(got) != 0 {
		t.Errorf("expected no food articles, got %d", len(got))
	}
}
