package variables

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildLaterSourceWins(t *testing.T) {
	got := Build(
		Source{Name: SourceProfile, Values: map[string]string{"company_name": "FromProfile", "email": "a@b.c"}},
		Source{Name: SourcePosting, Values: map[string]string{"company_name": "FromPosting"}},
		Source{Name: SourceCustom, Values: map[string]string{"company_name": "FromCustom"}},
	)
	want := Map{"company_name": "FromCustom", "email": "a@b.c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmptyValuesAreAbsent(t *testing.T) {
	got := Build(
		Source{Name: SourceProfile, Values: map[string]string{"city": "Berlin"}},
		Source{Name: SourcePosting, Values: map[string]string{"city": "", "": "ignored"}},
	)
	if got["city"] != "Berlin" {
		t.Fatalf("expected empty value not to overwrite, got %q", got["city"])
	}
	if _, ok := got[""]; ok {
		t.Fatalf("expected empty key to be dropped")
	}
}

func TestBuildKeysAreCaseSensitive(t *testing.T) {
	got := Build(Source{Values: map[string]string{"Name": "A", "name": "b"}})
	if got["Name"] != "A" || got["name"] != "b" {
		t.Fatalf("expected literal keys, got %v", got)
	}
}

func TestPolicyOrder(t *testing.T) {
	sources := []Source{
		{Name: SourceCustom, Values: map[string]string{"k": "custom"}},
		{Name: "extra"},
		{Name: SourcePosting, Values: map[string]string{"k": "posting"}},
		{Name: SourceProfile, Values: map[string]string{"k": "profile"}},
	}
	ordered := DefaultPolicy().Order(sources)
	var names []string
	for _, s := range ordered {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"extra", SourceProfile, SourcePosting, SourceCustom}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := DefaultPolicy().Resolve(sources...)["k"]; got != "custom" {
		t.Fatalf("expected custom to win, got %q", got)
	}

	postingWins := Policy{Precedence: []string{SourceCustom, SourceProfile, SourcePosting}}
	if got := postingWins.Resolve(sources...)["k"]; got != "posting" {
		t.Fatalf("expected posting to win under reordered policy, got %q", got)
	}
}

func TestKeysSorted(t *testing.T) {
	m := Map{"b": "1", "a": "2", "c": "3"}
	if diff := cmp.Diff([]string{"a", "b", "c"}, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch: %s", diff)
	}
}
