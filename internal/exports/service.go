package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"kamiscan-backend/internal/shared/storage/object"
	"kamiscan-backend/internal/shared/telemetry"
)

const (
	defaultDownloadBase = "/api/v1/exports/"
	defaultPresignTTL   = 15 * time.Minute
	maxSlugLength       = 60
)

type Service struct {
	Store object.ObjectStore
	// DownloadBase prefixes keys for stores that cannot presign.
	DownloadBase string
	PresignTTL   time.Duration
	Now          func() time.Time
}

func NewService(store object.ObjectStore) *Service {
	return &Service{
		Store:        store,
		DownloadBase: defaultDownloadBase,
		PresignTTL:   defaultPresignTTL,
		Now:          time.Now,
	}
}

// Export renders req and stores it under accountID's namespace.
func (s *Service) Export(ctx context.Context, accountID string, req Request) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, errors.New("exports service not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return Result{}, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	template := strings.ToLower(strings.TrimSpace(req.Template))
	if template == "" {
		template = TemplateStandard
	}
	if strings.TrimSpace(req.Content.Summary) == "" {
		return Result{}, fmt.Errorf("%w: content.summary is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content.Title) == "" {
		req.Content.Title = "Document Summary"
	}

	now := s.now().UTC()
	data, err := Render(format, template, req.Content, now)
	if err != nil {
		return Result{}, err
	}

	key := object.OwnerPrefix(accountID) + path.Join("exports", fmt.Sprintf("%d_%s.%s", now.UnixMilli(), slug(req.Content.Title), format))
	size, err := s.Store.SaveWithKey(ctx, key, ContentType(format), bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}

	telemetry.Info("export.created", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    accountID,
		"format":     format,
		"template":   template,
		"size":       size,
	})

	return Result{
		Success:   true,
		URL:       s.downloadURL(ctx, key),
		Key:       key,
		Format:    format,
		Template:  template,
		Size:      size,
		Timestamp: now,
	}, nil
}

// Open returns an export owned by accountID with its content type.
func (s *Service) Open(ctx context.Context, accountID, key string) (io.ReadCloser, string, error) {
	if s == nil || s.Store == nil {
		return nil, "", errors.New("exports service not configured")
	}
	key = strings.TrimLeft(key, "/")
	if accountID == "" || !object.OwnedBy(key, accountID) {
		return nil, "", ErrNotFound
	}
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, object.ErrInvalidKey) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return rc, ContentType(strings.TrimPrefix(path.Ext(key), ".")), nil
}

func (s *Service) downloadURL(ctx context.Context, key string) string {
	if presigner, ok := s.Store.(object.Presigner); ok {
		url, err := presigner.PresignGet(ctx, key, s.PresignTTL)
		if err == nil {
			return url
		}
		telemetry.Warn("export.presign_failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"key":        key,
			"error":      telemetry.ErrorField(err),
		})
	}
	base := s.DownloadBase
	if base == "" {
		base = defaultDownloadBase
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// slug turns a title into a lowercase file-name fragment.
func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "summary"
	}
	return out
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
