package callbacks

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		data, unique, payload string
	}{
		{"\fjob_title|3", "job_title", "3"},
		{"\freferral|42|x", "referral", "42|x"},
		{"\fshow_data", "show_data", ""},
		{"show_data|", "show_data", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		u, p := Parse(tc.data)
		if u != tc.unique || p != tc.payload {
			t.Errorf("Parse(%q) = %q, %q", tc.data, u, p)
		}
	}
}
