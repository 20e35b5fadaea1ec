package clone

import (
	"context"
	"testing"
)

func TestGitTransportGetRefsList(t *testing.T) {
	upstream := newUpstreamRepo(t)
	transport := NewGitTransport(nil, upstream, "")

	refs, err := transport.GetRefsList(context.Background())
	if err != nil {
		t.Fatalf("GetRefsList: %v", err)
	}

	head, ok := refs.HEAD()
	if !ok {
		t.Fatal("expected a synthetic HEAD entry")
	}
	if head.PeerName != "refs/heads/main" {
		t.Errorf("HEAD PeerName = %q, want %q", head.PeerName, "refs/heads/main")
	}

	main, ok := refs.ByName("refs/heads/main")
	if !ok {
		t.Fatal("expected refs/heads/main to be advertised")
	}
	if main.ObjectID == "" {
		t.Error("expected refs/heads/main to carry an object id")
	}

	if _, ok := refs.ByName("refs/tags/v1.0.0"); !ok {
		t.Error("expected the tag to be advertised")
	}
}

func TestGitTransportFetch(t *testing.T) {
	upstream := newUpstreamRepo(t)
	gitDir := newBareRepo(t)

	transport := NewGitTransport(nil, upstream, gitDir)
	refs, err := transport.GetRefsList(context.Background())
	if err != nil {
		t.Fatalf("GetRefsList: %v", err)
	}
	main, ok := refs.ByName("refs/heads/main")
	if !ok {
		t.Fatal("expected refs/heads/main")
	}

	mapped := RefSet{{Name: "refs/heads/main", PeerName: "refs/heads/main", ObjectID: main.ObjectID}}
	if err := transport.Fetch(context.Background(), mapped); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got := mustExecG("", "git", "--git-dir", gitDir, "rev-parse", "refs/heads/main")
	if got != main.ObjectID {
		t.Errorf("fetched refs/heads/main = %s, want %s", got, main.ObjectID)
	}
}

func TestGitTransportSetOptionDepth(t *testing.T) {
	transport := NewGitTransport(nil, "remote", "gitdir").(*gitTransport)
	transport.SetOption("depth", "5")
	if transport.opts.depth != 5 {
		t.Errorf("depth = %d, want 5", transport.opts.depth)
	}
}

func TestGitTransportSetOptionExtraHeader(t *testing.T) {
	transport := NewGitTransport(nil, "remote", "gitdir").(*gitTransport)
	transport.SetOption("http.extraHeader", "Authorization: token abc")
	if len(transport.opts.extraHeaders) != 1 || transport.opts.extraHeaders[0] != "Authorization: token abc" {
		t.Errorf("extraHeaders = %v", transport.opts.extraHeaders)
	}
}

func TestGitTransportDisconnectResetsOptions(t *testing.T) {
	transport := NewGitTransport(nil, "remote", "gitdir").(*gitTransport)
	transport.SetOption("keep", "true")
	if err := transport.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if transport.opts.keep {
		t.Error("expected Disconnect to clear transport options")
	}
}
