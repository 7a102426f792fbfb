package pretext

import "testing"

func TestHeadingParts(t *testing.T) {
	tests := []struct {
		heading string
		prefix  string
		title   string
		id      string
	}{
		{"Trends {#sec-trends}", "sec-", "Trends", "sec-trends"},
		{"Data Visualization", "sec-", "Data Visualization", "sec-data-visualization"},
		{"  Padded title  ", "subsec-", "Padded title", "subsec-padded-title"},
		{"Colors {.unnumbered}", "sec-", "Colors", "sec-colors"},
		{"Colors {#sec-col .unnumbered}", "sec-", "Colors", "sec-col"},
		{"Broken {#id =}", "sec-", "Broken", "id ="},
		{"Sets {a, b}", "sec-", "Sets {a, b}", "sec-sets-a-b"},
		{"Set {x}", "sec-", "Set {x}", "sec-set-x"},
		{"Options {key=value}", "subsec-", "Options {key=value}", "subsec-options-key-value"},
		{"100% done!", "sec-", "100% done!", "sec-100-done"},
		{"***", "sec-", "***", "sec-"},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			title, id := headingParts(tt.heading, tt.prefix)
			if title != tt.title || id != tt.id {
				t.Errorf("headingParts(%q) = %q, %q; want %q, %q", tt.heading, title, id, tt.title, tt.id)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  --Already--Slugged--  ", "already-slugged"},
		{"R & Python: a comparison", "r-python-a-comparison"},
		{"Über Größe", "ber-gr-e"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
