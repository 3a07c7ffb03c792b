package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatform(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{
			name:      "desktop firefox",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
			want:      "firefox-desktop",
		},
		{
			name:      "mobile chrome",
			userAgent: "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Mobile Safari/537.36",
			want:      "chrome-mobile",
		},
		{
			name:      "empty agent",
			userAgent: "",
			want:      "",
		},
		{
			name:      "gibberish collapses, raw string never leaks",
			userAgent: "totally-custom-agent/1.0",
			want:      "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Platform(tt.userAgent))
		})
	}
}
