package tools

import "testing"

func TestExtractSymbolName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{uri: "jemdoc://symbols/isWritable", want: "isWritable"},
		{uri: "jemdoc://symbols/operator%2B%3D", want: "operator+="},
		{uri: "jemdoc://symbols/", want: ""},
		{uri: "jemdoc://libraries", want: ""},
		{uri: "other://symbols/x", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			if got := extractSymbolName(tt.uri); got != tt.want {
				t.Errorf("extractSymbolName(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}
