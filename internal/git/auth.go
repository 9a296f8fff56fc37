package git

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// tokenAuth returns token based basic auth for http(s) remotes and nil otherwise.
func tokenAuth(url, token string) (transport.AuthMethod, error) {
	if token == "" {
		return nil, nil
	}
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "http://") {
		return nil, nil
	}
	// GitHub accepts any non-empty username alongside a token.
	return &http.BasicAuth{Username: "x-access-token", Password: token}, nil
}
