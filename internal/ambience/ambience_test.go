package ambience

import "testing"

func TestSplitFilename(t *testing.T) {
	cases := []struct {
		filename string
		wantID   string
		wantName string
		wantOK   bool
	}{
		{"rain_Rain Forest.wav", "rain", "Rain Forest", true},
		{"cafe_Coffee Shop.v2.wav", "cafe", "Coffee Shop.v2", true},
		{"noextension", "", "", false},
		{"id_name", "id", "name", true},
	}
	for _, c := range cases {
		id, name, ok := splitFilename(c.filename)
		if ok != c.wantOK {
			t.Fatalf("%q: ok = %v, want %v", c.filename, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if id != c.wantID || name != c.wantName {
			t.Fatalf("%q: got (%q, %q), want (%q, %q)", c.filename, id, name, c.wantID, c.wantName)
		}
	}
}
