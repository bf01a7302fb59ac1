// Package storage writes tenant-scoped artifacts to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

const maxSlugLength = 50

// ArtifactMetadata describes an upload
type ArtifactMetadata struct {
	Title        string // slug source
	LanguageCode string // appended to subtitle file names
}

// Limits caps upload sizes per kind; zero means unlimited
type Limits struct {
	MaxVideoBytes int64
	MaxPDFBytes   int64
}

// Service defines artifact storage operations
type Service interface {
	UploadArtifact(ctx context.Context, tenantID, talkID string, kind model.ArtifactKind, content []byte, meta ArtifactMetadata) (*model.StoredArtifact, error)
	Download(ctx context.Context, tenantID, storageKey string) ([]byte, error)
	DeleteArtifactsForTalk(ctx context.Context, tenantID, talkID string) (int, error)
	PublicURL(storageKey string) string
}

type kindInfo struct {
	ext         string
	contentType string
}

var kinds = map[model.ArtifactKind]kindInfo{
	model.ArtifactSubtitles:   {"srt", "application/x-subrip"},
	model.ArtifactVideo:       {"mp4", "video/mp4"},
	model.ArtifactPDF:         {"pdf", "application/pdf"},
	model.ArtifactCertificate: {"pdf", "application/pdf"},
}

// service implements Service
type service struct {
	store         ObjectStore
	publicBaseURL string
	limits        Limits
	logger        *slog.Logger
}

// NewService creates a new artifact storage service
func NewService(store ObjectStore, publicBaseURL string, limits Limits, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		limits:        limits,
		logger:        logger,
	}
}

// UploadArtifact validates size and writes content under the tenant prefix
func (s *service) UploadArtifact(ctx context.Context, tenantID, talkID string, kind model.ArtifactKind, content []byte, meta ArtifactMetadata) (*model.StoredArtifact, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown artifact kind %q", kind))
	}
	if len(content) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "artifact content is empty")
	}
	if err := s.checkSize(kind, int64(len(content))); err != nil {
		return nil, err
	}

	key, err := BuildKey(tenantID, talkID, kind, meta.Title, meta.LanguageCode)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"tenant-id": tenantID, "talk-id": talkID}
	if meta.LanguageCode != "" {
		metadata["language"] = meta.LanguageCode
	}
	if err := s.store.Put(ctx, key, content, info.contentType, metadata); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransport, "failed to upload "+string(kind)+" artifact")
	}

	s.logger.Debug("artifact uploaded", "storage_key", key, "size", humanize.Bytes(uint64(len(content))))

	return &model.StoredArtifact{
		URL:         s.PublicURL(key),
		StorageKey:  key,
		Size:        int64(len(content)),
		ContentType: info.contentType,
	}, nil
}

func (s *service) checkSize(kind model.ArtifactKind, size int64) error {
	var limit int64
	switch kind {
	case model.ArtifactVideo:
		limit = s.limits.MaxVideoBytes
	case model.ArtifactPDF:
		limit = s.limits.MaxPDFBytes
	}
	if limit > 0 && size > limit {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("%s upload of %s exceeds the %s limit",
			kind, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(limit))))
	}
	return nil
}

// Download reads an object that must live under the tenant's prefix
func (s *service) Download(ctx context.Context, tenantID, storageKey string) ([]byte, error) {
	if err := checkTenantKey(tenantID, storageKey); err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, storageKey)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "artifact not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransport, "failed to download artifact")
	}
	return data, nil
}

// DeleteArtifactsForTalk removes every object of the tenant whose file name
// contains the talk's short id, returning how many were removed
func (s *service) DeleteArtifactsForTalk(ctx context.Context, tenantID, talkID string) (int, error) {
	if err := validateTenant(tenantID); err != nil {
		return 0, err
	}
	short, err := ShortID(talkID)
	if err != nil {
		return 0, err
	}

	keys, err := s.store.List(ctx, tenantID+"/")
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeTransport, "failed to list artifacts")
	}

	removed := 0
	for _, key := range keys {
		if !strings.Contains(path.Base(key), short) {
			continue
		}
		if err := s.store.Remove(ctx, key); err != nil {
			return removed, apperrors.Wrap(err, apperrors.CodeTransport, "failed to delete artifact "+key)
		}
		removed++
	}
	s.logger.Info("talk artifacts deleted", "tenant_id", tenantID, "talk_id", talkID, "count", removed)
	return removed, nil
}

// PublicURL joins the public base with the key, escaping each path segment
func (s *service) PublicURL(storageKey string) string {
	segments := strings.Split(storageKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + "/" + strings.Join(segments, "/")
}

// BuildKey returns {tenant}/{kind}/{slug}_{shortId}[_{lang}].{ext}
func BuildKey(tenantID, entityID string, kind model.ArtifactKind, title, languageCode string) (string, error) {
	if err := validateTenant(tenantID); err != nil {
		return "", err
	}
	info, ok := kinds[kind]
	if !ok {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown artifact kind %q", kind))
	}
	short, err := ShortID(entityID)
	if err != nil {
		return "", err
	}

	name := Slugify(title) + "_" + short
	if languageCode != "" {
		name += "_" + Slugify(languageCode)
	}
	return fmt.Sprintf("%s/%s/%s.%s", tenantID, kind, name, info.ext), nil
}

// ShortID is the first 8 hex characters of a uuid
func ShortID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeValidation, fmt.Sprintf("invalid identifier %q", id))
	}
	return strings.ReplaceAll(parsed.String(), "-", "")[:8], nil
}

// Slugify lowercases, strips accents and joins alphanumeric runs with '-'
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "file"
	}
	return slug
}

func validateTenant(tenantID string) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid tenant id %q", tenantID))
	}
	return nil
}

// checkTenantKey rejects keys outside tenantID/ or containing traversal segments
func checkTenantKey(tenantID, key string) error {
	if err := validateTenant(tenantID); err != nil {
		return err
	}
	if !strings.HasPrefix(key, tenantID+"/") || path.Clean(key) != key {
		return apperrors.New(apperrors.CodeValidation, "storage key is outside the tenant prefix")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return apperrors.New(apperrors.CodeValidation, "storage key is outside the tenant prefix")
		}
	}
	return nil
}
