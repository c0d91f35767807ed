// Package storage wraps Cloudinary uploads and deletes behind a small
// interface so the submission pipeline can be tested without the network.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/workflow"
)

// attemptTimeout bounds each individual upload attempt.
const attemptTimeout = 30 * time.Second

// ObjectStorage is the subset of object storage operations the workflow needs
type ObjectStorage interface {
	Upload(ctx context.Context, file interface{}, folder, publicID string) (string, error)
	UploadUnsigned(ctx context.Context, file interface{}, folder, publicID string) (string, error)
	Destroy(ctx context.Context, publicID string) error
}

// Cloudinary implements ObjectStorage over the Cloudinary SDK
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	preset string
}

// New creates a Cloudinary storage client from the config values
func New(conf *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(conf.CloudinaryCloud, conf.CloudinaryKey, conf.CloudinarySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &Cloudinary{cld: cld, preset: conf.CloudinaryPreset}, nil
}

// Upload sends a file (bytes reader, data URI or remote URL) and returns the
// public HTTPS URL
func (c *Cloudinary) Upload(ctx context.Context, file interface{}, folder, publicID string) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:   folder,
		PublicID: publicID,
	})
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}

// UploadUnsigned is the secondary direct-upload path using the unsigned preset
func (c *Cloudinary) UploadUnsigned(ctx context.Context, file interface{}, folder, publicID string) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		UploadPreset: c.preset,
		Unsigned:     api.Bool(true),
	})
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}

// Destroy removes an object by its public id
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	_, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

// freshPayload hands each upload attempt its own view of the payload. A byte
// slice gets a new reader every time, and a seekable reader is rewound; a
// stream consumed by a failed attempt would otherwise feed the retries empty
// content.
func freshPayload(file interface{}) interface{} {
	switch v := file.(type) {
	case []byte:
		return bytes.NewReader(v)
	case io.ReadSeeker:
		_, _ = v.Seek(0, io.SeekStart)
		return v
	default:
		return file
	}
}

// UploadWithRetry tries the signed path with exponential backoff (1s/2s/4s)
// and falls back to the unsigned direct path before giving up.
func UploadWithRetry(ctx context.Context, store ObjectStorage, file interface{}, folder, publicID string) (string, error) {
	var lastErr error
	backoff := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		link, err := store.Upload(attemptCtx, freshPayload(file), folder, publicID)
		cancel()
		if err == nil {
			return link, nil
		}
		lastErr = err
		zap.S().Warnw("upload attempt failed",
			"publicID", publicID,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", &workflow.TransientRemoteError{Op: "upload", Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	link, err := store.UploadUnsigned(attemptCtx, freshPayload(file), folder, publicID)
	if err != nil {
		zap.S().Errorw("unsigned fallback upload failed",
			"publicID", publicID,
			"error", err,
		)
		return "", &workflow.TransientRemoteError{Op: "upload", Err: fmt.Errorf("both upload paths exhausted: %v (signed: %v)", err, lastErr)}
	}
	return link, nil
}

// PublicIDFromURL derives the public id from a Cloudinary delivery URL so
// objects can be deleted by the URL persisted on the case.
func PublicIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	uploadIdx := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx < 0 || uploadIdx == len(parts)-1 {
		return "", false
	}
	rest := parts[uploadIdx+1:]
	// drop the version segment if present
	if len(rest) > 1 && strings.HasPrefix(rest[0], "v") {
		if _, err := fmt.Sscanf(rest[0], "v%d", new(int)); err == nil {
			rest = rest[1:]
		}
	}
	id := strings.Join(rest, "/")
	if dot := strings.LastIndex(id, "."); dot > 0 {
		id = id[:dot]
	}
	if id == "" {
		return "", false
	}
	return id, true
}
