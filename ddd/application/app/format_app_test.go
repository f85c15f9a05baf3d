package app

import (
	"context"
	"errors"
	"testing"

	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/pkg/errno"
)

type stubProbe struct {
	result *gateway.ProbeResult
	err    error
}

func (p *stubProbe) Probe(context.Context, string) (*gateway.ProbeResult, error) {
	return p.result, p.err
}

// TestResolveFormats verifies the catalog is ordered and serialized for transport.
func TestResolveFormats(t *testing.T) {
	probe := &stubProbe{result: &gateway.ProbeResult{
		Platform: "youtube",
		Formats: []gateway.ProbeFormat{
			{FormatID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a", FileSize: 1000},
			{FormatID: "137", Ext: "mp4", Height: 1080, FPS: 30, VCodec: "avc1", ACodec: "none"},
			{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: 128},
		},
	}}
	formatApp := NewFormatAppWith(service.NewFormatService(probe))

	out, err := formatApp.ResolveFormats(context.Background(), &cqe.ResolveFormatsReq{Source: "https://youtube.com/watch?v=1"})
	if err != nil {
		t.Fatalf("ResolveFormats error = %v", err)
	}
	if out.Platform != "youtube" || len(out.Formats) != 3 {
		t.Fatalf("catalog = %+v", out)
	}
	got := []string{out.Formats[0].Quality, out.Formats[1].Quality, out.Formats[2].Quality}
	want := []string{"1080p", "360p", "audio"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("qualities = %v, want %v", got, want)
		}
	}
	if out.Formats[0].ApproxSizeBytes != nil {
		t.Fatalf("unknown size should be omitted, got %d", *out.Formats[0].ApproxSizeBytes)
	}
}

// TestResolveFormatsErrors verifies validation and upstream failures keep their tags.
func TestResolveFormatsErrors(t *testing.T) {
	formatApp := NewFormatAppWith(service.NewFormatService(&stubProbe{err: errors.New("Unsupported URL")}))

	if _, err := formatApp.ResolveFormats(context.Background(), &cqe.ResolveFormatsReq{Source: ""}); !errors.Is(err, errno.ErrValidation) {
		t.Fatalf("empty source err = %v, want ValidationError", err)
	}
	_, err := formatApp.ResolveFormats(context.Background(), &cqe.ResolveFormatsReq{Source: "https://unknown.example/x"})
	if !errors.Is(err, errno.ErrUnresolvableSource) {
		t.Fatalf("err = %v, want UnresolvableSource", err)
	}
}
