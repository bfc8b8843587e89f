// Package photos uploads proof-of-delivery photos for a new record. Uploads
// run on a bounded worker pool; a photo that fails is logged and dropped so
// the record can still be created with the rest.
package photos

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"payload/internal/domain"
	"payload/internal/storage"
)

// ErrStorageDisabled is reported per photo when no bucket is configured.
var ErrStorageDisabled = errors.New("photo storage not configured")

// Upload is one photo as sent by the client: a data URL
// ("data:image/jpeg;base64,...") or bare base64.
type Upload struct {
	Data string
}

// Processor stores the photos attached to a record.
type Processor interface {
	// Process returns refs for the photos that were stored, in input order.
	Process(ctx context.Context, owner, recordID string, uploads []Upload) []domain.PhotoRef
	// Discard removes every stored photo of a record that was never created.
	Discard(ctx context.Context, owner, recordID string) error
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	MaxBytes      int64
	Logger        *logrus.Logger
}

type processor struct {
	cfg     Config
	storage storage.Service
}

func NewProcessor(cfg Config, store storage.Service) Processor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &processor{
		cfg:     cfg,
		storage: store,
	}
}

func (p *processor) Process(ctx context.Context, owner, recordID string, uploads []Upload) []domain.PhotoRef {
	if len(uploads) == 0 {
		return nil
	}
	logger := p.cfg.Logger.WithFields(logrus.Fields{"user": owner, "record_id": recordID})

	results := make([]domain.PhotoRef, len(uploads))
	sem := make(chan struct{}, p.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range uploads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				logger.WithField("photo", i).Warnf("photo skipped: %v", ctx.Err())
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			ref, err := p.store(ctx, owner, recordID, i, uploads[i])
			if err != nil {
				logger.WithField("photo", i).Warnf("photo dropped: %v", err)
				return
			}
			results[i] = ref
		}(i)
	}
	wg.Wait()

	stored := make([]domain.PhotoRef, 0, len(results))
	for _, ref := range results {
		if ref != "" {
			stored = append(stored, ref)
		}
	}
	if dropped := len(uploads) - len(stored); dropped > 0 {
		logger.Warnf("%d of %d photos could not be stored", dropped, len(uploads))
	}
	return stored
}

func (p *processor) store(ctx context.Context, owner, recordID string, index int, upload Upload) (domain.PhotoRef, error) {
	if p.storage == nil || p.cfg.Bucket == "" {
		return "", ErrStorageDisabled
	}
	data, contentType, err := Decode(upload.Data)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > p.cfg.MaxBytes {
		return "", fmt.Errorf("photo is %d bytes, limit is %d", len(data), p.cfg.MaxBytes)
	}

	key := path.Join(p.recordPrefix(owner, recordID), fmt.Sprintf("%d.%s", index, extensionFor(contentType)))
	if err := p.storage.PutObject(ctx, p.cfg.Bucket, key, contentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return domain.PhotoRef(key), nil
}

func (p *processor) Discard(ctx context.Context, owner, recordID string) error {
	if p.storage == nil || p.cfg.Bucket == "" {
		return nil
	}
	return p.storage.DeletePrefix(ctx, p.cfg.Bucket, p.recordPrefix(owner, recordID)+"/")
}

func (p *processor) recordPrefix(owner, recordID string) string {
	prefix := strings.Trim(p.cfg.KeyPrefix, "/")
	if prefix == "" {
		return path.Join(owner, recordID)
	}
	return path.Join(prefix, owner, recordID)
}

// Decode turns a data URL or bare base64 string into bytes and a content type.
func Decode(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", errors.New("empty photo")
	}

	contentType := ""
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", errors.New("photo data URL must be base64 encoded")
		}
		contentType = strings.TrimSuffix(header, ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode photo: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty photo")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unsupported photo type %q", contentType)
	}
	return data, contentType, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	default:
		return "img"
	}
}

var _ Processor = (*processor)(nil)
