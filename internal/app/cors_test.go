package app

import "testing"

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"willvault.example", "*.willvault.example", "localhost:*"}

	allowed := []string{
		"https://willvault.example",
		"https://app.willvault.example",
		"http://localhost:5173",
	}
	for _, origin := range allowed {
		if !originAllowed(patterns, origin) {
			t.Errorf("origin %q should be allowed", origin)
		}
	}

	denied := []string{
		"https://evil.example",
		"https://willvault.example.evil.example",
		"http://remotehost:5173",
	}
	for _, origin := range denied {
		if originAllowed(patterns, origin) {
			t.Errorf("origin %q should be denied", origin)
		}
	}
}
