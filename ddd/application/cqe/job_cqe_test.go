package cqe

import (
	"errors"
	"testing"

	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/errno"
)

// TestSubmitJobReqValidate verifies each rejection is tagged as a validation error.
func TestSubmitJobReqValidate(t *testing.T) {
	cases := []struct {
		name string
		req  SubmitJobReq
	}{
		{"empty source", SubmitJobReq{}},
		{"bad scheme", SubmitJobReq{Source: "ftp://x/y"}},
		{"unknown step", SubmitJobReq{Source: "https://example.com/v", Steps: []string{"upscale"}}},
		{"explicit fetch", SubmitJobReq{Source: "https://example.com/v", Steps: []string{"fetch", "transcode"}}},
		{"duplicate fetch", SubmitJobReq{Source: "https://example.com/v", Steps: []string{"transcode", "FETCH"}}},
		{"bad quality", SubmitJobReq{Source: "https://example.com/v", Quality: "ultra"}},
		{"bad clip", SubmitJobReq{Source: "https://example.com/v", Options: vo.JobOptions{StartTime: "01:00", EndTime: "00:30"}}},
		{"translate without target", SubmitJobReq{Source: "https://example.com/v", Steps: []string{"transcribe", "translate"}}},
		{"audio quality video format", SubmitJobReq{Source: "https://example.com/v", Quality: "audio", Options: vo.JobOptions{OutputFormat: "mp4"}}},
	}
	for _, tc := range cases {
		err := tc.req.Validate()
		if err == nil {
			t.Fatalf("%s: Validate succeeded, want error", tc.name)
		}
		if !errors.Is(err, errno.ErrValidation) {
			t.Fatalf("%s: err = %v, want ValidationError", tc.name, err)
		}
	}
}

// TestSubmitJobReqNormalizes verifies defaults and step parsing.
func TestSubmitJobReqNormalizes(t *testing.T) {
	req := SubmitJobReq{
		Source:  "  https://example.com/watch?v=1 ",
		Quality: "720P60",
		Steps:   []string{"Transcode", "extract_text", "translate"},
		Options: vo.JobOptions{TargetLanguage: "de"},
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate error = %v", err)
	}
	if req.Source != "https://example.com/watch?v=1" || req.Quality != "720p60" {
		t.Fatalf("normalized = %q %q", req.Source, req.Quality)
	}
	want := []vo.StepKind{vo.StepKindTranscode, vo.StepKindExtractText, vo.StepKindTranslate}
	got := req.StepKinds()
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}

	empty := SubmitJobReq{Source: "https://example.com/v"}
	if err := empty.Validate(); err != nil || empty.Quality != vo.QualityBest || len(empty.StepKinds()) != 0 {
		t.Fatalf("empty chain: err=%v quality=%q kinds=%v", err, empty.Quality, empty.StepKinds())
	}
}
