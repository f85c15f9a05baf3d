package service

import (
	"context"
	"errors"
	"testing"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/pkg/errno"
)

type probeFunc func(ctx context.Context, source string) (*gateway.ProbeResult, error)

func (f probeFunc) Probe(ctx context.Context, source string) (*gateway.ProbeResult, error) {
	return f(ctx, source)
}

// TestBuildCatalogDedupesQualities verifies one entry per quality with mp4 preferred and audio last.
func TestBuildCatalogDedupesQualities(t *testing.T) {
	catalog := BuildCatalog(&gateway.ProbeResult{
		Platform: "youtube",
		Formats: []gateway.ProbeFormat{
			{FormatID: "m1", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: 64},
			{FormatID: "w720", Ext: "webm", Width: 1280, Height: 720, FPS: 30, VCodec: "vp9", FileSize: 9000},
			{FormatID: "m720", Ext: "mp4", Width: 1280, Height: 720, FPS: 30, VCodec: "avc1", FileSize: 5000},
			{FormatID: "m720_60", Ext: "mp4", Width: 1280, Height: 720, FPS: 59.94, VCodec: "avc1"},
			{FormatID: "a2", Ext: "webm", VCodec: "none", ACodec: "opus", ABR: 160, FileSizeApprox: 300},
			{FormatID: "sb", Ext: "mhtml", VCodec: "none", ACodec: "none"},
		},
	})

	if len(catalog.Formats) != 3 {
		t.Fatalf("formats = %+v, want 3 entries", catalog.Formats)
	}
	first, second, audio := catalog.Formats[0], catalog.Formats[1], catalog.Formats[2]
	if first.Quality != "720p60" || first.FrameRate == nil || *first.FrameRate != 59.94 {
		t.Fatalf("first = %+v, want 720p60", first)
	}
	if second.Quality != "720p" || second.FormatID != "m720" || second.Resolution != "1280x720" {
		t.Fatalf("second = %+v, want mp4 720p", second)
	}
	if !audio.IsAudioOnly() || audio.FormatID != "a2" || audio.ApproxSizeBytes == nil || *audio.ApproxSizeBytes != 300 {
		t.Fatalf("audio = %+v, want best bitrate audio", audio)
	}
}

// TestFormatResolveErrors verifies the error taxonomy of Resolve.
func TestFormatResolveErrors(t *testing.T) {
	svc := NewFormatService(probeFunc(func(context.Context, string) (*gateway.ProbeResult, error) {
		return nil, errors.New("ERROR: Unsupported URL")
	}))
	ctx := context.Background()

	for _, source := range []string{"", "   ", "ftp://example.com/a", "not a url"} {
		if _, err := svc.Resolve(ctx, source); !errors.Is(err, errno.ErrValidation) {
			t.Fatalf("Resolve(%q) error = %v, want ValidationError", source, err)
		}
	}
	if _, err := svc.Resolve(ctx, "https://example.com/v"); !errors.Is(err, errno.ErrUnresolvableSource) {
		t.Fatalf("Resolve error = %v, want UnresolvableSource", err)
	}
}

// TestResolveOption verifies lookups by quality label.
func TestResolveOption(t *testing.T) {
	svc := NewFormatService(probeFunc(func(_ context.Context, source string) (*gateway.ProbeResult, error) {
		if source != "https://example.com/v" {
			t.Fatalf("probe source = %q, want trimmed source", source)
		}
		return &gateway.ProbeResult{Formats: []gateway.ProbeFormat{
			{FormatID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a"},
		}}, nil
	}))

	opt, catalog, err := svc.ResolveOption(context.Background(), " https://example.com/v ", "720p")
	if err != nil || opt.FormatID != "22" || catalog == nil {
		t.Fatalf("ResolveOption = %+v, %v", opt, err)
	}
	if _, _, err := svc.ResolveOption(context.Background(), "https://example.com/v", "1080p"); err == nil {
		t.Fatalf("ResolveOption(1080p) succeeded")
	}
}
