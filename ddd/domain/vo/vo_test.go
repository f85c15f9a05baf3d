package vo

import (
	"strings"
	"testing"
)

// TestJobStatusTransitions verifies the lifecycle edges.
func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusRunning, true},
		{JobStatusQueued, JobStatusFailed, true},
		{JobStatusQueued, JobStatusCompleted, false},
		{JobStatusRunning, JobStatusResolvingFormats, true},
		{JobStatusResolvingFormats, JobStatusRunning, true},
		{JobStatusResolvingFormats, JobStatusCompleted, false},
		{JobStatusRunning, JobStatusCompleted, true},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRunning, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Fatalf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
	if _, err := ParseJobStatus("paused"); err == nil {
		t.Fatalf("ParseJobStatus(paused) succeeded")
	}
}

// TestParseStepKind verifies case and separator normalization.
func TestParseStepKind(t *testing.T) {
	k, err := ParseStepKind(" Extract_Text ")
	if err != nil || k != StepKindExtractText {
		t.Fatalf("ParseStepKind = %q, %v", k, err)
	}
	if _, err := ParseStepKind("upscale"); err == nil {
		t.Fatalf("ParseStepKind(upscale) succeeded")
	}
	if StepKindFetch.ArtifactKind() != "original" || StepKindTranslate.ArtifactKind() != "processed:translate" {
		t.Fatalf("artifact kinds = %s, %s", StepKindFetch.ArtifactKind(), StepKindTranslate.ArtifactKind())
	}
}

// TestIdentityQuotaKey verifies guests and users never share a key.
func TestIdentityQuotaKey(t *testing.T) {
	if got := NewGuestIdentity("abc").QuotaKey(); got != "guest:abc" {
		t.Fatalf("guest key = %q", got)
	}
	if got := NewAuthenticatedIdentity("abc", "pro").QuotaKey(); got != "authenticated:abc" {
		t.Fatalf("user key = %q", got)
	}
	if got := (Identity{}).QuotaKey(); got != "guest:anonymous" {
		t.Fatalf("zero identity key = %q", got)
	}

	long := strings.Repeat("x", 300)
	key := NewGuestIdentity(long).QuotaKey()
	if len(key) > 191 || !strings.HasPrefix(key, "guest:sha256:") {
		t.Fatalf("long guest key = %q (%d bytes), want hashed and under 191", key, len(key))
	}
	if key != NewGuestIdentity(long).QuotaKey() {
		t.Fatalf("hashed key is not stable")
	}
	if key == NewGuestIdentity(strings.Repeat("x", 299)+"y").QuotaKey() {
		t.Fatalf("distinct long tokens share a key")
	}
	if got := NewGuestIdentity(strings.Repeat("a", 64)).QuotaKey(); got != "guest:"+strings.Repeat("a", 64) {
		t.Fatalf("64-byte subject was hashed: %q", got)
	}
}

// TestCatalogFindFallsBackToFrameRateVariant verifies a plain height label selects the same-height high frame rate option.
func TestCatalogFindFallsBackToFrameRateVariant(t *testing.T) {
	c := &FormatCatalog{Formats: []FormatOption{
		{Quality: "1080p", FormatID: "137"},
		{Quality: "720p60", FormatID: "298"},
		{Quality: "720p", FormatID: "22"},
		{Quality: "480p60", FormatID: "244"},
		{Quality: QualityAudio, FormatID: "140"},
	}}
	cases := []struct {
		quality string
		want    string
		ok      bool
	}{
		{"720p", "22", true},
		{"720p60", "298", true},
		{"480p", "244", true},
		{"72p", "", false},
		{"360p", "", false},
		{"480p6", "", false},
		{QualityAudio, "140", true},
	}
	for _, tc := range cases {
		got, ok := c.Find(tc.quality)
		if ok != tc.ok || got.FormatID != tc.want {
			t.Fatalf("Find(%q) = %q, %v, want %q, %v", tc.quality, got.FormatID, ok, tc.want, tc.ok)
		}
	}
}

// TestParseClock verifies only digit fields within range are accepted.
func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"05:30", 330, false},
		{"01:02:03", 3723, false},
		{"99:59:59", 359999, false},
		{"+5:00", 0, true},
		{"-1:00", 0, true},
		{" 5:00", 0, true},
		{"100:00:00", 0, true},
		{"99999999999999999999:00", 0, true},
		{"05:60", 0, true},
		{"5", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, %v, want %d (err=%v)", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

// TestQuotaState verifies exhaustion and remaining counts.
func TestQuotaState(t *testing.T) {
	s := QuotaState{Limit: 1, Used: 1}
	if !s.Exhausted() || s.Remaining() != 0 {
		t.Fatalf("state = %+v exhausted=%v remaining=%d", s, s.Exhausted(), s.Remaining())
	}
	s = QuotaState{Limit: 2, Used: 5}
	if s.Remaining() != 0 {
		t.Fatalf("overdrawn remaining = %d, want 0", s.Remaining())
	}
	s = QuotaState{Limit: -1, Used: 100}
	if s.Exhausted() || s.Remaining() != -1 {
		t.Fatalf("unlimited state exhausted=%v remaining=%d", s.Exhausted(), s.Remaining())
	}
}
