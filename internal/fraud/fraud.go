// Package fraud flags photos that look like photos already submitted.
package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/abrezinsky/ecobingo/internal/cache"
	"github.com/abrezinsky/ecobingo/internal/imagesig"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/photostore"
)

const (
	DefaultThreshold    = 85.0
	DefaultWindow       = 30
	DefaultSignatureTTL = 30 * 24 * time.Hour

	// earlyStop ends the scan once a match is this close
	earlyStop = 95.0
)

// History lists earlier photo submissions, newest first. userID 0 means
// every user.
type History interface {
	ListRecentPhotoSubmissions(ctx context.Context, userID int64, limit int) ([]models.Submission, error)
}

// Options tunes a Detector. Zero values take the defaults.
type Options struct {
	Threshold    float64
	Window       int
	SignatureTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.SignatureTTL <= 0 {
		o.SignatureTTL = DefaultSignatureTTL
	}
	return o
}

// Verdict is the outcome of a duplicate check
type Verdict struct {
	IsFraud             bool
	Similarity          float64
	MatchedSubmissionID int64
	MatchedTaskID       int64
}

// Detector compares new photos against recent submissions
type Detector struct {
	log     logger.Logger
	history History
	photos  photostore.Store
	cache   cache.Cache
	metrics *metrics.Metrics
	opts    Options
}

// NewDetector creates a Detector
func NewDetector(log logger.Logger, history History, photos photostore.Store, c cache.Cache, opts Options) *Detector {
	return &Detector{
		log:     log,
		history: history,
		photos:  photos,
		cache:   c,
		opts:    opts.withDefaults(),
	}
}

// SetMetrics attaches a metrics sink
func (d *Detector) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Threshold returns the similarity at or above which a photo is flagged
func (d *Detector) Threshold() float64 {
	return d.opts.Threshold
}

func signatureKey(submissionID int64) string {
	return "image_signature_" + strconv.FormatInt(submissionID, 10)
}

// IsFraudulent compares photo with the most recent photo submissions
// (restricted to scopeUserID when non-zero). An undecodable photo is never
// flagged; candidates that cannot be loaded are skipped. The error is
// non-nil only when the history itself cannot be read.
func (d *Detector) IsFraudulent(ctx context.Context, photo []byte, scopeUserID int64) (Verdict, error) {
	start := time.Now()

	sig, err := imagesig.Compute(photo)
	if err != nil {
		d.log.Warn("Could not compute signature for new photo", "error", err)
		return Verdict{}, nil
	}

	candidates, err := d.history.ListRecentPhotoSubmissions(ctx, scopeUserID, d.opts.Window)
	if err != nil {
		return Verdict{}, err
	}

	var v Verdict
	for _, c := range candidates {
		prev, err := d.candidateSignature(ctx, c)
		if err != nil {
			d.log.Debug("Skipping candidate", "submission_id", c.ID, "error", err)
			continue
		}

		hash := imagesig.HashSimilarity(sig, prev)
		color := imagesig.ColorSimilarity(sig, prev)
		final := imagesig.Similarity(sig, prev)
		d.log.Debug("Compared photo", "submission_id", c.ID, "hash", hash, "color", color)

		if final > v.Similarity {
			v.Similarity = final
			v.MatchedSubmissionID = c.ID
			v.MatchedTaskID = c.TaskID
		}
		if v.Similarity > earlyStop {
			break
		}
	}

	v.IsFraud = v.Similarity >= d.opts.Threshold
	if !v.IsFraud {
		v.MatchedSubmissionID, v.MatchedTaskID = 0, 0
	}
	d.metrics.FraudCheck(v.IsFraud, v.Similarity, time.Since(start))
	d.log.Info("Duplicate photo check", "candidates", len(candidates), "similarity", v.Similarity, "fraud", v.IsFraud)
	return v, nil
}

// candidateSignature reads the cached signature or computes it from the
// stored photo. Computed signatures are cached only for completed
// submissions, whose photo can no longer change.
func (d *Detector) candidateSignature(ctx context.Context, sub models.Submission) (*imagesig.Signature, error) {
	key := signatureKey(sub.ID)
	if raw, err := d.cache.Get(ctx, key); err == nil {
		var sig imagesig.Signature
		if err := json.Unmarshal(raw, &sig); err == nil {
			d.metrics.SignatureCacheHit()
			return &sig, nil
		}
		d.log.Warn("Discarding unreadable cached signature", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		d.log.Warn("Signature cache lookup failed", "key", key, "error", err)
	}
	d.metrics.SignatureCacheMiss()

	data, err := d.photos.Load(ctx, sub.PhotoKey)
	if err != nil {
		return nil, err
	}
	sig, err := imagesig.Compute(data)
	if err != nil {
		return nil, err
	}
	if sub.Completed {
		d.store(ctx, key, sig)
	}
	return sig, nil
}

// SaveSignature computes and caches the signature of an approved
// submission's photo
func (d *Detector) SaveSignature(ctx context.Context, submissionID int64, photo []byte) error {
	sig, err := imagesig.Compute(photo)
	if err != nil {
		return err
	}
	return d.store(ctx, signatureKey(submissionID), sig)
}

func (d *Detector) store(ctx context.Context, key string, sig *imagesig.Signature) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	if err := d.cache.Set(ctx, key, raw, d.opts.SignatureTTL); err != nil {
		d.log.Warn("Failed to cache signature", "key", key, "error", err)
		return err
	}
	return nil
}
