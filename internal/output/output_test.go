package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"yaml", FormatYAML, false},
		{"json", FormatJSON, false},
		{"", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPrinter(t *testing.T) {
	data := map[string]any{"mrz_line1": "I<BGD123", "dob": nil}

	t.Run("json keeps angle brackets", func(t *testing.T) {
		var buf bytes.Buffer
		if err := (Printer{W: &buf, Format: FormatJSON}).Print(data); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"mrz_line1": "I<BGD123"`) || !strings.Contains(buf.String(), `"dob": null`) {
			t.Errorf("json = %s", buf.String())
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := (Printer{W: &buf, Format: FormatYAML}).Print(data); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "mrz_line1: I<BGD123") {
			t.Errorf("yaml = %s", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := (Printer{W: &bytes.Buffer{}, Format: "xml"}).Print(data); err == nil {
			t.Error("expected error")
		}
	})
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{W: &buf, Format: FormatYAML}
	if err := p.PrintJSON([]byte(`{"text":"নাম: রহিম","count":3,"ratio":0.5}`)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"রহিম", "count: 3", "ratio: 0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml missing %q:\n%s", want, out)
		}
	}

	if err := p.PrintJSON([]byte(`{broken`)); err == nil {
		t.Error("expected decode error")
	}
}
