package merge

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/nikogura/doc-reformatter/pkg/chunker"
	"github.com/nikogura/doc-reformatter/pkg/extract"
	"github.com/nikogura/doc-reformatter/pkg/llm"
	"github.com/nikogura/doc-reformatter/pkg/section"
)

func mapFromJSON(t *testing.T, raw string) (m *section.Map) {
	t.Helper()
	obj, err := section.DecodeObject([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to decode fixture: %v", err)
	}
	m = section.FromObject(obj)
	return m
}

func TestMergeListsDedup(t *testing.T) {
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"skills": ["Python", "Go"]}`)},
		{Index: 1, Map: mapFromJSON(t, `{"skills": ["Go", "Rust"]}`)},
	}

	out := NewMerger(nil).Merge(results, &extract.ExtractedContent{})
	if out.Degraded() {
		t.Fatalf("Expected clean merge, got errors %v", out.Errors)
	}

	skills, _ := out.Map.Get("skills")
	expected := []string{"Python", "Go", "Rust"}
	if !reflect.DeepEqual(skills.Items, expected) {
		t.Errorf("Expected %v, got %v", expected, skills.Items)
	}
}

func TestMergeStringsDedup(t *testing.T) {
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"summary": "Builds platforms."}`)},
		{Index: 1, Map: mapFromJSON(t, `{"summary": "Builds platforms.\nMentors engineers."}`)},
		{Index: 2, Map: mapFromJSON(t, `{"summary": "Mentors engineers."}`)},
	}

	out := NewMerger(nil).Merge(results, nil)

	summary, _ := out.Map.Get("summary")
	if summary.Text != "Builds platforms.\nMentors engineers." {
		t.Errorf("Unexpected merged summary: %q", summary.Text)
	}
}

func TestMergeDedupIsPerKey(t *testing.T) {
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"skills": ["Go"], "summary": "Go developer."}`)},
		{Index: 1, Map: mapFromJSON(t, `{"languages": ["Go"], "education": "Go developer."}`)},
	}

	out := NewMerger(nil).Merge(results, nil)

	languages, _ := out.Map.Get("languages")
	if !reflect.DeepEqual(languages.Items, []string{"Go"}) {
		t.Errorf("Expected languages [Go], got %v", languages.Items)
	}
	education, _ := out.Map.Get("education")
	if education.Text != "Go developer." {
		t.Errorf("Expected education text kept, got %q", education.Text)
	}
}

func TestMergeEntriesAndRecords(t *testing.T) {
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{
			"experience": [{"company": "Acme", "role": "Engineer"}],
			"contact": {"email": "jane@example.com", "phones": ["1"]}
		}`)},
		{Index: 1, Map: mapFromJSON(t, `{
			"experience": [{"role": "Engineer", "company": "Acme"}, {"company": "Initech", "role": "Lead"}],
			"contact": {"phones": ["1", "2"], "city": "Austin"}
		}`)},
	}

	out := NewMerger(nil).Merge(results, nil)

	experience, _ := out.Map.Get("experience")
	if len(experience.Entries) != 2 {
		t.Fatalf("Expected 2 entries after dedup, got %d", len(experience.Entries))
	}

	contact, _ := out.Map.Get("contact")
	if !reflect.DeepEqual(contact.Record.Keys(), []string{"email", "phones", "city"}) {
		t.Errorf("Unexpected record keys: %v", contact.Record.Keys())
	}
	phones, _ := contact.Record.Get("phones")
	if !reflect.DeepEqual(phones.Items, []string{"1", "2"}) {
		t.Errorf("Expected [1 2], got %v", phones.Items)
	}
}

func TestMergeTypeMismatchLaterWins(t *testing.T) {
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"education": "BSc"}`)},
		{Index: 1, Map: mapFromJSON(t, `{"education": ["BSc", "MSc"]}`)},
	}

	out := NewMerger(nil).Merge(results, nil)

	education, _ := out.Map.Get("education")
	if education.Kind != section.KindList || len(education.Items) != 2 {
		t.Errorf("Expected later list to win, got %+v", education)
	}
}

func TestMergeIgnoresCompletionOrder(t *testing.T) {
	a := llm.Result{Index: 0, Map: mapFromJSON(t, `{"summary": "First.", "skills": ["Go"]}`)}
	b := llm.Result{Index: 1, Map: mapFromJSON(t, `{"skills": ["Rust"], "summary": "Second."}`)}
	c := llm.Result{Index: 2, Map: mapFromJSON(t, `{"education": "BSc", "summary": ["not", "a", "string"]}`)}

	merger := NewMerger(nil)
	expected := merger.Merge([]llm.Result{a, b, c}, nil)

	for _, perm := range [][]llm.Result{{c, b, a}, {b, a, c}, {c, a, b}} {
		got := merger.Merge(perm, nil)
		expectedJSON, _ := json.Marshal(expected.Map)
		gotJSON, _ := json.Marshal(got.Map)
		if string(expectedJSON) != string(gotJSON) {
			t.Errorf("Expected %s, got %s", expectedJSON, gotJSON)
		}
		if !reflect.DeepEqual(expected.SectionOrder, got.SectionOrder) {
			t.Errorf("Expected order %v, got %v", expected.SectionOrder, got.SectionOrder)
		}
	}
}

func TestMergeSectionOrder(t *testing.T) {
	content := &extract.ExtractedContent{
		SectionOrder: []string{"NAME", "Professional Summary", "References"},
		References:   []string{"Doe, J. (2020)."},
	}
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"skills": ["Go"], "professional_summary": "Engineer", "name": "Jane Doe"}`)},
	}

	out := NewMerger(nil).Merge(results, content)

	expected := []string{"name", "professional_summary", "references", "skills"}
	if !reflect.DeepEqual(out.SectionOrder, expected) {
		t.Errorf("Expected order %v, got %v", expected, out.SectionOrder)
	}

	refs, _ := out.Map.Get(section.ReferencesKey)
	if !reflect.DeepEqual(refs.Items, []string{"Doe, J. (2020)."}) {
		t.Errorf("Expected extracted references, got %v", refs.Items)
	}
}

func TestMergeDegraded(t *testing.T) {
	content := &extract.ExtractedContent{
		Chunks:     []chunker.Chunk{{Text: strings.Repeat("a", 600)}},
		Tables:     [][][]string{{{"A", "B"}}},
		References: []string{"Ref 1"},
	}
	results := []llm.Result{
		{Index: 0, Map: mapFromJSON(t, `{"summary": "ok"}`)},
		{Index: 1, Err: &llm.GatewayError{Message: "boom"}},
	}

	out := NewMerger(nil).Merge(results, content)
	if !out.Degraded() || !out.Map.IsDegraded() {
		t.Fatal("Expected degraded output")
	}

	if !strings.Contains(out.Map.Error(), "boom") {
		t.Errorf("Expected error text to contain 'boom', got '%s'", out.Map.Error())
	}

	summary, _ := out.Map.Get("summary")
	if summary.Text != DegradedSummary {
		t.Errorf("Expected degraded summary, got '%s'", summary.Text)
	}

	background, _ := out.Map.Get("background")
	if len(background.Text) != PreviewLength {
		t.Errorf("Expected %d character preview, got %d", PreviewLength, len(background.Text))
	}

	tables, _ := out.Map.Get(section.TablesKey)
	if tables.Record.Len() != 1 {
		t.Errorf("Expected 1 table, got %d", tables.Record.Len())
	}

	refs, _ := out.Map.Get(section.ReferencesKey)
	if !reflect.DeepEqual(refs.Items, []string{"Ref 1"}) {
		t.Errorf("Expected references preserved, got %v", refs.Items)
	}
}
