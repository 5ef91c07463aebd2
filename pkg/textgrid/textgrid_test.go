package textgrid

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func sampleTiers() []Tier {
	return []Tier{
		{Name: "SpeakerA", Intervals: []Interval{
			{Start: 0.2, End: 0.7, Text: "A"},
			{Start: 1.5, End: 2.1, Text: "A"},
		}},
		{Name: "SpeakerB", Intervals: []Interval{
			{Start: 0.9, End: 1.4, Text: "B"},
		}},
		{Name: "Overlap"},
		{Name: "Leak", Intervals: []Interval{
			{Start: 2.3, End: 2.6, Text: "LEAK"},
		}},
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleTiers()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := sampleTiers()
	if len(got) != len(want) {
		t.Fatalf("got %d tiers, want %d", len(got), len(want))
	}
	for i, tier := range want {
		if got[i].Name != tier.Name {
			t.Fatalf("tier %d name = %q, want %q", i, got[i].Name, tier.Name)
		}
		if len(got[i].Intervals) != len(tier.Intervals) {
			t.Fatalf("tier %q has %d intervals, want %d",
				tier.Name, len(got[i].Intervals), len(tier.Intervals))
		}
		for j, iv := range tier.Intervals {
			g := got[i].Intervals[j]
			if math.Abs(g.Start-iv.Start) > 1e-9 || math.Abs(g.End-iv.End) > 1e-9 || g.Text != iv.Text {
				t.Fatalf("tier %q interval %d = %+v, want %+v", tier.Name, j, g, iv)
			}
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.TextGrid")
	if err := WriteFile(path, sampleTiers()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d tiers, want 4", len(got))
	}
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleTiers()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`File type = "ooTextFile"`,
		`Object class = "TextGrid"`,
		"xmax = 2.6",
		"size = 4",
		`class = "IntervalTier"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestParseSkipsEmptyText(t *testing.T) {
	var buf bytes.Buffer
	tiers := []Tier{{Name: "SpeakerA", Intervals: []Interval{
		{Start: 0, End: 1, Text: ""},
		{Start: 1, End: 2, Text: "A"},
	}}}
	if err := Write(&buf, tiers); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got[0].Intervals) != 1 || got[0].Intervals[0].Text != "A" {
		t.Fatalf("intervals = %+v, want only the labeled one", got[0].Intervals)
	}
}

func TestParseRejectsNonTextGrid(t *testing.T) {
	in := strings.NewReader("File type = \"ooTextFile\"\nObject class = \"Pitch\"\n")
	if _, err := Parse(in); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if _, err := Parse(strings.NewReader("random noise")); !errors.Is(err, ErrParse) {
		t.Fatalf("headerless input: err = %v, want ErrParse", err)
	}
}
