package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"media-pipeline-service/ddd/domain/port"
)

type failingStorage struct{ fakeStorage }

func (failingStorage) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("bucket missing")
}

// TestArtifactIssue verifies the link and its expiry are issued together.
func TestArtifactIssue(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewArtifactService(fakeStorage{}, 2*time.Hour).(*artifactServiceImpl)
	svc.now = func() time.Time { return issuedAt }

	a, err := svc.Issue(context.Background(), port.StoredObject{ObjectKey: "jobs/1/fetch/a.mp4", Filename: "a.mp4", SizeBytes: 10, ContentType: "video/mp4"}, "original")
	if err != nil {
		t.Fatalf("Issue error = %v", err)
	}
	if a.URL != "https://blob.local/jobs/1/fetch/a.mp4?sig=1" {
		t.Fatalf("URL = %q", a.URL)
	}
	if !a.ExpiresAt.Equal(issuedAt.Add(2 * time.Hour)) {
		t.Fatalf("ExpiresAt = %s", a.ExpiresAt)
	}
	if a.Kind != "original" || a.SizeBytes != 10 || a.Filename != "a.mp4" {
		t.Fatalf("artifact = %+v", a)
	}
	if a.Expired(issuedAt.Add(time.Hour)) || !a.Expired(issuedAt.Add(2*time.Hour)) {
		t.Fatalf("Expired boundaries wrong for %s", a.ExpiresAt)
	}
}

// TestArtifactTTLBounds verifies the TTL default and the presign ceiling.
func TestArtifactTTLBounds(t *testing.T) {
	if got := NewArtifactService(fakeStorage{}, 0).TTL(); got != 24*time.Hour {
		t.Fatalf("default TTL = %s", got)
	}
	if got := NewArtifactService(fakeStorage{}, 30*24*time.Hour).TTL(); got != 7*24*time.Hour {
		t.Fatalf("capped TTL = %s", got)
	}
}

// TestArtifactIssueError verifies presign failures surface with the object key.
func TestArtifactIssueError(t *testing.T) {
	_, err := NewArtifactService(failingStorage{}, time.Hour).Issue(context.Background(), port.StoredObject{ObjectKey: "k1"}, "original")
	if err == nil || !strings.Contains(err.Error(), "k1") {
		t.Fatalf("Issue error = %v", err)
	}
}
