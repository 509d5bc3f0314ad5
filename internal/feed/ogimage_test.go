package feed

import (
	"context"
	"testing"

	"github.com/hitoshi/newsroom/internal/fetcher"
)

func TestExtractOgImage_Priority(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:image property",
			html: `<html><head><meta property="og:image" content="https://img.example.com/og.jpg"></head></html>`,
			want: "https://img.example.com/og.jpg",
		},
		{
			name: "og:image propertyはtwitter:imageより優先",
			html: `<head><meta name="twitter:image" content="https://img.example.com/tw.jpg"><meta property="og:image" content="https://img.example.com/og.jpg"></head>`,
			want: "https://img.example.com/og.jpg",
		},
		{
			name: "og:image name",
			html: `<head><meta name="og:image" content="https://img.example.com/og-name.jpg"></head>`,
			want: "https://img.example.com/og-name.jpg",
		},
		{
			name: "twitter:image property",
			html: `<head><meta property="twitter:image" content="https://img.example.com/tw-prop.jpg"><meta name="twitter:image" content="https://img.example.com/tw-name.jpg"></head>`,
			want: "https://img.example.com/tw-prop.jpg",
		},
		{
			name: "twitter:image name",
			html: `<head><meta name="twitter:image" content="https://img.example.com/tw-name.jpg"></head>`,
			want: "https://img.example.com/tw-name.jpg",
		},
		{
			name: "前後の空白を除去",
			html: `<head><meta property="og:image" content="  https://img.example.com/pad.jpg  "></head>`,
			want: "https://img.example.com/pad.jpg",
		},
		{
			name: "空のcontentは次の候補へ",
			html: `<head><meta property="og:image" content=" "><meta name="twitter:image" content="https://img.example.com/tw.jpg"></head>`,
			want: "https://img.example.com/tw.jpg",
		},
		{
			name: "該当タグなし",
			html: `<head><meta name="description" content="no image"></head>`,
			want: "",
		},
		{
			name: "空文書",
			html: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractOgImage(tt.html); got != tt.want {
				t.Errorf("ExtractOgImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveOgImage_FetchesHTML(t *testing.T) {
	f := newStubFetcher(map[string]string{
		"https://news.example.com/a": `<meta property="og:image" content="https://img.example.com/a.jpg">`,
	})
	r := NewImageResolver(f, nil)

	got := r.ResolveOgImage(context.Background(), "https://news.example.com/a")
	if got != "https://img.example.com/a.jpg" {
		t.Errorf("ResolveOgImage() = %q", got)
	}
	if len(f.accepts) != 1 || f.accepts[0] != fetcher.AcceptHTML {
		t.Errorf("accept headers = %v, want [%q]", f.accepts, fetcher.AcceptHTML)
	}
}

func TestResolveOgImage_FetchFailureIsMiss(t *testing.T) {
	r := NewImageResolver(newStubFetcher(nil), nil)

	if got := r.ResolveOgImage(context.Background(), "https://news.example.com/missing"); got != "" {
		t.Errorf("ResolveOgImage() = %q, want empty", got)
	}
}

func TestResolveOgImage_EmptyURL(t *testing.T) {
	f := newStubFetcher(nil)
	r := NewImageResolver(f, nil)

	if got := r.ResolveOgImage(context.Background(), ""); got != "" {
		t.Errorf("ResolveOgImage() = %q, want empty", got)
	}
	if len(f.calls) != 0 {
		t.Errorf("expected no fetch, got %v", f.calls)
	}
}
