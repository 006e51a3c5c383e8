package archive

import (
	"strings"
	"testing"
)

func TestAlphabet(t *testing.T) {
	segments := Alphabet()

	if len(segments) != 28 {
		t.Fatalf("Alphabet() returned %d segments, want 28", len(segments))
	}
	if segments[0] != "A" || segments[25] != "Z" {
		t.Errorf("Letter segments out of order: first=%q last-letter=%q", segments[0], segments[25])
	}
	if segments[26] != "NBR" || segments[27] != "~" {
		t.Errorf("Special segments = %q, %q, want NBR, ~", segments[26], segments[27])
	}
}

func TestEndpoint(t *testing.T) {
	got := Endpoint("https://www.metal-archives.com", "A", 500, 500)
	want := "https://www.metal-archives.com/browse/ajax-letter/l/A/json?sEcho=1&iDisplayStart=500&iDisplayLength=500"
	if got != want {
		t.Errorf("Endpoint() = %q, want %q", got, want)
	}
}

func TestDecodePage(t *testing.T) {
	body := []byte(`{
		"iTotalRecords": 12479,
		"aaData": [
			["<a href='...'>Abbath</a>", "Norway", "Black Metal", "Active"],
			["<a href='...'>Accept</a>", "Germany", "Heavy Metal", "Active"]
		]
	}`)

	page, err := DecodePage(body)
	if err != nil {
		t.Fatalf("DecodePage() failed: %v", err)
	}
	if page.Total != 12479 {
		t.Errorf("Total = %d, want 12479", page.Total)
	}
	if len(page.Records) != 2 {
		t.Fatalf("Records = %d rows, want 2", len(page.Records))
	}
	if page.Records[1][1] != "Germany" {
		t.Errorf("Records[1][1] = %q, want Germany", page.Records[1][1])
	}
}

func TestDecodePageEmpty(t *testing.T) {
	page, err := DecodePage([]byte(`{"iTotalRecords": 0, "aaData": []}`))
	if err != nil {
		t.Fatalf("DecodePage() failed: %v", err)
	}
	if page.Total != 0 || len(page.Records) != 0 {
		t.Errorf("Empty page = %+v, want zero records and total", page)
	}
}

func TestDecodePageGarbage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html error page", "<html><body>Site is busy</body></html>"},
		{"truncated json", `{"iTotalRecords": 12`},
		{"wrong shape", `{"aaData": "not an array"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePage([]byte(tt.body)); err == nil {
				t.Error("DecodePage() should fail on a malformed body")
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize([]byte("<html>\n\t<body>busy</body>\n</html>"))
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("Sanitize() left control characters: %q", got)
	}
	if got != "<html><body>busy</body></html>" {
		t.Errorf("Sanitize() = %q", got)
	}
}
