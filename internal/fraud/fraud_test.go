package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abrezinsky/ecobingo/internal/cache"
	"github.com/abrezinsky/ecobingo/internal/imagesig"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/photostore"
	"github.com/abrezinsky/ecobingo/internal/testutil"
)

// fakeHistory serves a fixed candidate list and records the query
type fakeHistory struct {
	subs      []models.Submission
	err       error
	gotUserID int64
	gotLimit  int
}

func (f *fakeHistory) ListRecentPhotoSubmissions(_ context.Context, userID int64, limit int) ([]models.Submission, error) {
	f.gotUserID, f.gotLimit = userID, limit
	if f.err != nil {
		return nil, f.err
	}
	subs := f.subs
	if userID != 0 {
		subs = nil
		for _, s := range f.subs {
			if s.UserID == userID {
				subs = append(subs, s)
			}
		}
	}
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

type fixture struct {
	history  *fakeHistory
	photos   *photostore.Memory
	cache    *cache.Memory
	detector *Detector
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		history: &fakeHistory{},
		photos:  photostore.NewMemory(),
		cache:   cache.NewMemory(),
	}
	f.detector = NewDetector(logger.NewNop(), f.history, f.photos, f.cache, opts)
	return f
}

// add stores photo as submission id of user for task, newest last
func (f *fixture) add(id, userID, taskID int64, photo []byte, completed bool) {
	key := "photo-" + string(rune('a'+id))
	f.photos.Put(key, photo)
	sub := models.Submission{ID: id, UserID: userID, TaskID: taskID, PhotoKey: key, Completed: completed}
	f.history.subs = append([]models.Submission{sub}, f.history.subs...)
}

func TestIsFraudulent_NoHistory(t *testing.T) {
	f := newFixture(Options{})

	v, err := f.detector.IsFraudulent(context.Background(), testutil.DistinctPNG(t, 0), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IsFraud || v.Similarity != 0 {
		t.Errorf("expected clean verdict with similarity 0, got %+v", v)
	}
	if f.history.gotLimit != DefaultWindow {
		t.Errorf("expected window %d, got %d", DefaultWindow, f.history.gotLimit)
	}
}

func TestIsFraudulent_IdenticalPhoto(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 4)
	f.add(1, 10, 100, photo, false)

	v, err := f.detector.IsFraudulent(context.Background(), photo, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsFraud {
		t.Fatalf("expected identical photo to be flagged, got %+v", v)
	}
	if v.Similarity != 100 {
		t.Errorf("expected similarity 100, got %v", v.Similarity)
	}
	if v.MatchedSubmissionID != 1 || v.MatchedTaskID != 100 {
		t.Errorf("expected match on submission 1 / task 100, got %+v", v)
	}
}

func TestIsFraudulent_NearDuplicate(t *testing.T) {
	f := newFixture(Options{})
	orig := testutil.DistinctImage(7)
	f.add(1, 10, 100, testutil.EncodePNG(t, orig), true)

	v, _ := f.detector.IsFraudulent(context.Background(), testutil.EncodePNG(t, testutil.Brighten(orig, 10)), 0)

	if !v.IsFraud || v.Similarity <= 95 {
		t.Errorf("expected brightened copy to be flagged above 95, got %+v", v)
	}
}

func TestIsFraudulent_DistinctPhotos(t *testing.T) {
	f := newFixture(Options{})
	for i := 1; i <= 5; i++ {
		f.add(int64(i), 10, int64(100+i), testutil.DistinctPNG(t, i), true)
	}

	v, _ := f.detector.IsFraudulent(context.Background(), testutil.DistinctPNG(t, 0), 0)

	if v.IsFraud {
		t.Errorf("expected distinct photo to pass, got %+v", v)
	}
	if v.Similarity <= 0 || v.Similarity >= DefaultThreshold {
		t.Errorf("expected similarity in (0, %v), got %v", DefaultThreshold, v.Similarity)
	}
	if v.MatchedSubmissionID != 0 || v.MatchedTaskID != 0 {
		t.Errorf("expected no match reported for a clean verdict, got %+v", v)
	}
}

func TestIsFraudulent_Threshold(t *testing.T) {
	// A threshold of 40 flags photos that merely share half their hash bits
	f := newFixture(Options{Threshold: 40})
	f.add(1, 10, 100, testutil.DistinctPNG(t, 1), true)

	v, _ := f.detector.IsFraudulent(context.Background(), testutil.DistinctPNG(t, 2), 0)
	if !v.IsFraud {
		t.Errorf("expected verdict at threshold 40 to flag, got %+v", v)
	}
	if f.detector.Threshold() != 40 {
		t.Errorf("expected threshold 40, got %v", f.detector.Threshold())
	}
}

func TestIsFraudulent_UserScope(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 3)
	f.add(1, 10, 100, photo, true)

	v, _ := f.detector.IsFraudulent(context.Background(), photo, 20)
	if v.IsFraud {
		t.Errorf("expected another user's photo to be out of scope, got %+v", v)
	}
	if f.history.gotUserID != 20 {
		t.Errorf("expected scope user 20, got %d", f.history.gotUserID)
	}

	v, _ = f.detector.IsFraudulent(context.Background(), photo, 10)
	if !v.IsFraud {
		t.Errorf("expected own photo to be flagged, got %+v", v)
	}
}

func TestIsFraudulent_UndecodablePhotoFailsOpen(t *testing.T) {
	f := newFixture(Options{})
	f.add(1, 10, 100, testutil.DistinctPNG(t, 1), true)

	v, err := f.detector.IsFraudulent(context.Background(), []byte("not an image"), 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.IsFraud || v.Similarity != 0 {
		t.Errorf("expected {false, 0}, got %+v", v)
	}
}

func TestIsFraudulent_OversizedPhotoFailsOpen(t *testing.T) {
	f := newFixture(Options{})
	f.add(1, 10, 100, testutil.DistinctPNG(t, 1), true)

	v, err := f.detector.IsFraudulent(context.Background(), testutil.HeaderOnlyPNG(20000, 20000), 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.IsFraud || v.Similarity != 0 {
		t.Errorf("expected {false, 0}, got %+v", v)
	}
}

func TestIsFraudulent_SkipsOversizedCandidate(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 4)

	f.add(1, 10, 100, photo, false)
	f.add(2, 10, 101, testutil.HeaderOnlyPNG(20000, 20000), false)

	v, err := f.detector.IsFraudulent(context.Background(), photo, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsFraud || v.MatchedSubmissionID != 1 {
		t.Errorf("expected match on submission 1 past the oversized candidate, got %+v", v)
	}
}

func TestIsFraudulent_SkipsBrokenCandidates(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 6)

	f.add(1, 10, 100, photo, true)
	f.add(2, 10, 101, []byte("corrupt"), true)
	// missing from the store
	f.history.subs = append([]models.Submission{{ID: 3, UserID: 10, TaskID: 102, PhotoKey: "gone"}}, f.history.subs...)

	v, err := f.detector.IsFraudulent(context.Background(), photo, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsFraud || v.MatchedSubmissionID != 1 {
		t.Errorf("expected match on submission 1 past broken candidates, got %+v", v)
	}
}

func TestIsFraudulent_HistoryError(t *testing.T) {
	f := newFixture(Options{})
	f.history.err = errors.New("database is locked")

	if _, err := f.detector.IsFraudulent(context.Background(), testutil.DistinctPNG(t, 0), 0); err == nil {
		t.Error("expected history error to be returned")
	}
}

func TestIsFraudulent_StopsAtNearCertainMatch(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 8)

	// Oldest first: an identical photo is behind the newest one, which is
	// also identical. The scan must stop at the newest.
	f.add(1, 10, 100, photo, true)
	f.add(2, 10, 200, photo, true)

	v, _ := f.detector.IsFraudulent(context.Background(), photo, 0)
	if v.MatchedSubmissionID != 2 || v.MatchedTaskID != 200 {
		t.Errorf("expected the newest match, got %+v", v)
	}
	if _, err := f.cache.Get(context.Background(), signatureKey(1)); !errors.Is(err, cache.ErrMiss) {
		t.Error("expected the scan to stop before loading the older candidate")
	}
}

func TestCandidateSignature_UsesCache(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 2)

	// The stored photo differs from the cached signature; the cache wins
	f.add(1, 10, 100, testutil.DistinctPNG(t, 9), true)
	if err := f.detector.SaveSignature(context.Background(), 1, photo); err != nil {
		t.Fatalf("SaveSignature failed: %v", err)
	}

	v, _ := f.detector.IsFraudulent(context.Background(), photo, 0)
	if !v.IsFraud || v.Similarity != 100 {
		t.Errorf("expected cached signature to be used, got %+v", v)
	}
}

func TestCandidateSignature_CachesOnlyCompleted(t *testing.T) {
	f := newFixture(Options{})
	f.add(1, 10, 100, testutil.DistinctPNG(t, 1), false)
	f.add(2, 10, 101, testutil.DistinctPNG(t, 2), true)

	f.detector.IsFraudulent(context.Background(), testutil.DistinctPNG(t, 0), 0)

	if _, err := f.cache.Get(context.Background(), signatureKey(1)); !errors.Is(err, cache.ErrMiss) {
		t.Error("expected pending submission signature not to be cached")
	}
	if _, err := f.cache.Get(context.Background(), signatureKey(2)); err != nil {
		t.Errorf("expected completed submission signature to be cached, got %v", err)
	}
}

func TestCandidateSignature_IgnoresCorruptCacheEntry(t *testing.T) {
	f := newFixture(Options{})
	photo := testutil.DistinctPNG(t, 5)
	f.add(1, 10, 100, photo, true)
	f.cache.Set(context.Background(), signatureKey(1), []byte("{not json"), time.Hour)

	v, _ := f.detector.IsFraudulent(context.Background(), photo, 0)
	if !v.IsFraud {
		t.Errorf("expected fallback to the stored photo, got %+v", v)
	}
}

func TestSaveSignature(t *testing.T) {
	f := newFixture(Options{SignatureTTL: time.Hour})
	photo := testutil.DistinctPNG(t, 1)

	if err := f.detector.SaveSignature(context.Background(), 42, photo); err != nil {
		t.Fatalf("SaveSignature failed: %v", err)
	}

	raw, err := f.cache.Get(context.Background(), "image_signature_42")
	if err != nil {
		t.Fatalf("expected signature under image_signature_42: %v", err)
	}
	var got imagesig.Signature
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("cached signature is not JSON: %v", err)
	}
	want, _ := imagesig.Compute(photo)
	if got != *want {
		t.Error("cached signature differs from a fresh computation")
	}

	if err := f.detector.SaveSignature(context.Background(), 43, []byte("junk")); err == nil {
		t.Error("expected error for undecodable photo")
	}
}
