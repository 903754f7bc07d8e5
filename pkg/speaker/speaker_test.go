package speaker

import "testing"

func TestSpeakerFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"data/deepgram-alice-1700000000.wav", "alice"},
		{"/abs/dir/call-deepgram-bob_2-part3.wav", "bob_2"},
		{"deepgram-carol-x-y.wav", "carol"},
		{"recording.wav", Unknown},
		{"deepgram--x.wav", Unknown},
		{"deepgram-dave.wav", Unknown},
	}
	for _, tt := range tests {
		if got := SpeakerFromFilename(tt.path); got != tt.want {
			t.Errorf("SpeakerFromFilename(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
