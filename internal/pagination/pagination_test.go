package pagination

import "testing"

func TestClamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero falls back to default", 0, DefaultPageSize},
		{"negative falls back to default", -5, DefaultPageSize},
		{"in range passes through", 7, 7},
		{"max passes through", MaxPageSize, MaxPageSize},
		{"above max is clamped", MaxPageSize + 1, MaxPageSize},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Clamp(test.size); got != test.want {
				t.Errorf("Clamp(%d): got %d, want %d", test.size, got, test.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"", "42", "user-9f2c", "a/b+c"} {
		token := EncodeToken(key)
		got, err := DecodeToken(token)
		if err != nil {
			t.Fatalf("DecodeToken(%q): %v", token, err)
		}
		if got != key {
			t.Errorf("round trip of %q: got %q", key, got)
		}
	}
}

func TestDecodeTokenMalformed(t *testing.T) {
	t.Parallel()
	if _, err := DecodeToken("!!not base64!!"); err == nil {
		t.Error("expected error for malformed token")
	}
}
