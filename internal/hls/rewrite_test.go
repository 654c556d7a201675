package hls

import "testing"

func TestRewriteManifest(t *testing.T) {
	raw := "#EXTM3U\n#EXT-X-VERSION:3\nsegment_000.ts\nsegment_001.ts\n"
	got := string(RewriteManifest([]byte(raw), "https://cdn.example.com/api/video/42/480p"))
	want := "#EXTM3U\n#EXT-X-VERSION:3\n" +
		"https://cdn.example.com/api/video/42/480p/segment_000.ts\n" +
		"https://cdn.example.com/api/video/42/480p/segment_001.ts\n"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%s", got)
	}
}

func TestRewriteManifestPreservesCommentsAndBlanks(t *testing.T) {
	raw := "#EXTM3U\n\n#EXTINF:6.0,\nsegment_000.ts\n\n#EXT-X-ENDLIST\n"
	got := string(RewriteManifest([]byte(raw), "http://host/api/video/7/720p/"))
	want := "#EXTM3U\n\n#EXTINF:6.0,\nhttp://host/api/video/7/720p/segment_000.ts\n\n#EXT-X-ENDLIST\n"
	if got != want {
		t.Fatalf("unexpected rewrite:\n%s", got)
	}
}

func TestRewriteManifestTrimsTrailingBaseSlash(t *testing.T) {
	got := string(RewriteManifest([]byte("segment_003.ts"), "http://host/base///"))
	if got != "http://host/base/segment_003.ts" {
		t.Fatalf("unexpected rewrite %q", got)
	}
}
