package http

import (
	"testing"

	natsadapter "github.com/samirrijal/neargrid/internal/adapters/nats"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/v1/map/nearby", "/v1/map/nearby", true},
		{"/v1/threads/abc/comments", "/v1/threads/:id/comments", true},
		{"/v1/threads/abc/comments/c1", "/v1/threads/:id/comments", false},
		{"/v1/threads//comments", "/v1/threads/:id/comments", false},
		{"/v1/map/clusters", "/v1/map/nearby", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestETagMatches(t *testing.T) {
	const etag = `W/"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`W/"abc"`, true},
		{`W/"x", W/"abc"`, true},
		{`W/"x"`, false},
		{" * ", true},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, etag); got != tt.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestCacheControlFor(t *testing.T) {
	tests := map[string]string{
		"/v1/health":              "public, max-age=10",
		"/metrics":                "no-cache",
		"/v1/threads/t1/comments": "no-cache",
		"/v1/map/clusters":        "public, max-age=30",
		"/v1/threads/t1":          "public, max-age=60",
		"/docs/openapi.yaml":      "public, max-age=3600",
		"/graphql":                "private, max-age=0",
		"/somewhere/else":         "",
	}
	for path, want := range tests {
		if got := cacheControlFor(path); got != want {
			t.Errorf("cacheControlFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWSSubject(t *testing.T) {
	if got := wsSubject(""); got != natsadapter.CommentSubjects {
		t.Errorf("expected wildcard subject, got %q", got)
	}
	if got := wsSubject("t-1"); got != natsadapter.CommentSubject("t-1") {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestCommentRelay_UnknownAndMissing(t *testing.T) {
	r := &commentRelay{subs: nil}
	if f := r.handle(wsRequest{Action: "dance"}); f.Error == "" {
		t.Error("expected error for unknown action")
	}
	if f := r.handle(wsRequest{Action: "unsubscribe", ThreadID: "t-1"}); f.Error != "not subscribed" {
		t.Errorf("expected not subscribed, got %+v", f)
	}
}
