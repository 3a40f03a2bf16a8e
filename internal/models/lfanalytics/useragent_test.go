package lfanalytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Browsers(t *testing.T) {
	cl := NewUAClassifier()

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"Chrome", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36", "Chrome"},
		{"Edge n'est pas Chrome", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge"},
		{"Firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0", "Firefox"},
		{"Safari", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Version/17.0 Safari/605.1.15", "Safari"},
		{"Internet Explorer MSIE", "Mozilla/4.0 (compatible; MSIE 8.0; Windows NT 6.1)", "Internet Explorer"},
		{"Internet Explorer Trident", "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko", "Internet Explorer"},
		{"Inconnu", "curl/8.4.0", "Unknown"},
		{"Vide", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cl.Classify(tt.ua).Browser)
		})
	}
}

func TestClassify_Systems(t *testing.T) {
	cl := NewUAClassifier()

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"Windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows"},
		{"MacOS", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "MacOS"},
		{"Linux", "Mozilla/5.0 (X11; Linux x86_64)", "Linux"},
		{"Android n'est pas Linux", "Mozilla/5.0 (Linux; Android 14; Pixel 8)", "Android"},
		{"Inconnu", "curl/8.4.0", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cl.Classify(tt.ua).Os)
		})
	}
}

func TestClassify_Devices(t *testing.T) {
	cl := NewUAClassifier()

	assert.Equal(t, "Mobile", cl.Classify("Mozilla/5.0 (Linux; Android 14) Mobile Safari").Device)
	assert.Equal(t, "Tablet", cl.Classify("Mozilla/5.0 (Linux; Android 14) Tablet Safari").Device)
	// Sans indice, on suppose un poste de travail
	assert.Equal(t, "Desktop", cl.Classify("Mozilla/5.0 (Windows NT 10.0)").Device)
	assert.Equal(t, "Desktop", cl.Classify("").Device)
}

func TestUARule_Excludes(t *testing.T) {
	rule := UARule{Name: "Safari", Contains: "Safari", Excludes: []string{"Chrome"}}

	assert.True(t, rule.matches("Version/17.0 Safari/605.1.15"))
	assert.False(t, rule.matches("Chrome/120.0 Safari/537.36"))
	assert.False(t, rule.matches("Firefox/120.0"))
}
