package upload

import (
	"bytes"
	"image"
	"image/png"
	"reflect"
	"testing"

	"github.com/cppla/myresource/models"
)

func TestSuggestCategory(t *testing.T) {
	cases := []struct {
		mime, name string
		want       models.Category
	}{
		{"video/mp4", "clip.mp4", models.CategoryVideo},
		{"image/png", "a.png", models.CategoryImage},
		{"audio/mpeg", "a.mp3", models.CategoryAudio},
		{"application/pdf", "paper.pdf", models.CategoryDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "a.docx", models.CategoryDocument},
		{"", "Budget.XLSX", models.CategoryDocument},
		{"application/zip", "setup.zip", models.CategorySoftware},
		{"", "installer.dmg", models.CategorySoftware},
		{"", "notes.txt", models.CategoryOther},
		{"", "README", models.CategoryOther},
	}
	for _, tc := range cases {
		if got := SuggestCategory(tc.mime, tc.name); got != tc.want {
			t.Errorf("SuggestCategory(%q, %q) = %q, want %q", tc.mime, tc.name, got, tc.want)
		}
	}
}

func TestSuggestName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"holiday.png", "holiday"},
		{"report.final.pdf", "report.final"},
		{"backup.tar.gz", "backup.tar"},
		{"README", "README"},
		{".bashrc", ".bashrc"},
		{"dir/movie.mkv", "movie"},
	}
	for _, tc := range cases {
		if got := SuggestName(tc.in); got != tc.want {
			t.Errorf("SuggestName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags(" a, b ,,c , ")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("ParseTags = %q", got)
	}
	if got := ParseTags(""); len(got) != 0 || got == nil {
		t.Errorf("ParseTags(\"\") = %#v, want empty non-nil", got)
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf("image/png", "a.png"); got != "image/png" {
		t.Errorf("TypeOf = %q", got)
	}
	if got := TypeOf("", "archive.tar.GZ"); got != "gz" {
		t.Errorf("TypeOf fallback = %q", got)
	}
}

func TestDetectType(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	if got := DetectType("", buf.Bytes()); got != "image/png" {
		t.Errorf("sniffed type = %q", got)
	}
	if got := DetectType("application/octet-stream", buf.Bytes()); got != "image/png" {
		t.Errorf("generic declared type not sniffed: %q", got)
	}
	if got := DetectType("text/plain; charset=utf-8", nil); got != "text/plain" {
		t.Errorf("declared type = %q", got)
	}

	f := Sniff(BytesFile("noext", "", buf.Bytes()))
	if f.Type != "image/png" {
		t.Errorf("Sniff type = %q", f.Type)
	}
}
