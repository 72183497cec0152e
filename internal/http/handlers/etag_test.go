package handlers

import "testing"

func TestNotModified(t *testing.T) {
	etag := etagOf([]byte(`{"items":[]}`))

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{etag, true},
		{"W/" + etag, true},
		{`"other", ` + etag, true},
		{`"other"`, false},
	}
	for _, tc := range cases {
		if got := notModified(tc.header, etag); got != tc.want {
			t.Errorf("notModified(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
