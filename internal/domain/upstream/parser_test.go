package upstream

import (
	"errors"
	"strings"
	"testing"
)

const sampleXML = `<addcourse>
  <classdata>
    <course key="F57V03" cart="1">
      <uselection>
        <selection>
          <block pn="W" usn="M" key="F57V03" os="3" secNo="01"/>
          <block pn="W" usn="N" key="F57V04" os="0" secNo="02"/>
          <block pn="F" usn="M" key="F57V03" os="12" secNo="03"/>
        </selection>
      </uselection>
    </course>
  </classdata>
</addcourse>`

func TestParseDocumentInvalidXML(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"truncated", "<addcourse><block pn=\"W\""},
		{"mismatched tags", "<a><b></a></b>"},
		{"plain text", "this is not xml at all <"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument(tc.raw)
			if !errors.Is(err, ErrInvalidXML) {
				t.Fatalf("expected ErrInvalidXML, got %v", err)
			}
		})
	}
}

func TestFindOpenSeats(t *testing.T) {
	doc, err := ParseDocument(sampleXML)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	cases := []struct {
		name    string
		term    string
		section string
		key     string
		want    int
	}{
		{"exact match", "W", "M", "F57V03", 3},
		{"case insensitive", "w", "m", "f57v03", 3},
		{"whitespace trimmed", " W ", " M ", " F57V03 ", 3},
		{"zero seats", "W", "N", "F57V04", 0},
		{"different term", "F", "M", "F57V03", 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := doc.FindOpenSeats(tc.term, tc.section, tc.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFindOpenSeatsFirstMatchWins(t *testing.T) {
	raw := `<root>
      <block pn="W" usn="M" key="DUP" os="7"/>
      <block pn="W" usn="M" key="DUP" os="99"/>
    </root>`
	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	got, err := doc.FindOpenSeats("W", "M", "DUP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("expected first block in document order to win, got %d", got)
	}
}

func TestFindOpenSeatsBlockNotFound(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		term       string
		section    string
		key        string
		msgPortion string
	}{
		{
			name:       "no matching triple",
			raw:        sampleXML,
			term:       "W", section: "M", key: "NOPE",
			msgPortion: "no block found",
		},
		{
			name:       "missing os attribute",
			raw:        `<root><block pn="W" usn="M" key="X1"/></root>`,
			term:       "W", section: "M", key: "X1",
			msgPortion: "missing os attribute",
		},
		{
			name:       "empty os attribute",
			raw:        `<root><block pn="W" usn="M" key="X1" os="  "/></root>`,
			term:       "W", section: "M", key: "X1",
			msgPortion: "missing os attribute",
		},
		{
			name:       "non-integer os",
			raw:        `<root><block pn="W" usn="M" key="X1" os="lots"/></root>`,
			term:       "W", section: "M", key: "X1",
			msgPortion: "non-integer os value",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseDocument(tc.raw)
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			_, err = doc.FindOpenSeats(tc.term, tc.section, tc.key)
			if !errors.Is(err, ErrBlockNotFound) {
				t.Fatalf("expected ErrBlockNotFound, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msgPortion) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.msgPortion)
			}
		})
	}
}
