package gifticon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/zombor/giftguard/internal/extract"
	"github.com/zombor/giftguard/internal/scanning"
)

// Memos recorded with each gifticon, by how it arrived.
const (
	MemoAuto   = "자동 인식 저장"
	MemoUpload = "업로드 저장"
	MemoText   = "텍스트 저장"
)

// IDGenerator generates unique IDs for gifticons
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service turns voucher images and texts into stored gifticons
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	metrics     *Metrics
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	reFilenameJunk  = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	reFilenameSpace = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameJunk.ReplaceAllString(base, "")
	base = strings.TrimSpace(reFilenameSpace.ReplaceAllString(base, " "))

	if runes := []rune(base); len(runes) > 50 {
		base = string(runes[:50])
	}
	if base == "" {
		base = "gifticon"
	}
	return base + ext
}

// SetMetrics makes the service record its outcomes in m
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// ContentTypeFor guesses the MIME type of an image from its file name
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// ProcessUpload stores an uploaded image, recognizes it and saves the
// gifticon. The stored image is removed again when any step fails.
func (s *Service) ProcessUpload(filename string, data []byte, contentType string) (_ *Gifticon, err error) {
	defer func() { s.metrics.observe(sourceUpload, err) }()

	id := s.idGenerator.Generate()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("%w: saving file: %w", ErrImageAccess, err)
	}

	g := &Gifticon{
		ID:          id,
		SourceRef:   "upload:" + savedName,
		Memo:        MemoUpload,
		Filename:    savedName,
		ContentType: contentType,
	}
	if err := s.recognizeAndSave(g, data); err != nil {
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Warn("Failed to clean up upload", "filename", savedName, "error", delErr)
		}
		return nil, err
	}
	return g, nil
}

// ProcessFile recognizes an image found on disk, such as a new photo picked
// up by the watcher. The path is the source reference, so the same photo is
// only ever saved once.
func (s *Service) ProcessFile(path string) (_ *Gifticon, err error) {
	defer func() { s.metrics.observe(sourceFile, err) }()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sourceRef := "file:" + abs

	// Skip recognition for images that are already stored.
	known, err := s.db.HasSource(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("checking source: %w", err)
	}
	if known {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, sourceRef)
	}

	g := &Gifticon{
		ID:          s.idGenerator.Generate(),
		SourceRef:   sourceRef,
		Memo:        MemoAuto,
		ContentType: ContentTypeFor(path),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageAccess, err)
	}
	if err := s.recognizeAndSave(g, data); err != nil {
		return nil, err
	}
	return g, nil
}

// ProcessText saves a gifticon from text recognized elsewhere, typically on
// the phone. Without a source reference the text itself identifies it.
func (s *Service) ProcessText(sourceRef, text, memo string) (_ *Gifticon, err error) {
	defer func() { s.metrics.observe(sourceText, err) }()

	if sourceRef == "" {
		sum := sha256.Sum256([]byte(text))
		sourceRef = "text:" + hex.EncodeToString(sum[:8])
	}
	if memo == "" {
		memo = MemoText
	}
	g := &Gifticon{
		ID:        s.idGenerator.Generate(),
		SourceRef: sourceRef,
		Memo:      memo,
	}
	if err := s.extractAndSave(g, text); err != nil {
		return nil, err
	}
	return g, nil
}

// Preview runs extraction without saving anything
func (s *Service) Preview(text string) (*extract.Result, error) {
	return extract.Extract(text, s.timeSource.Now())
}

func (s *Service) recognizeAndSave(g *Gifticon, data []byte) error {
	start := time.Now()
	text, err := s.scanner.RecognizeText(data, g.ContentType)
	s.metrics.observeRecognition(time.Since(start))
	if err != nil {
		slog.Error("Failed to recognize text",
			"source", g.SourceRef,
			"content_type", g.ContentType,
			"file_size", len(data),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	return s.extractAndSave(g, text)
}

// extractAndSave fills g from text and inserts it. g is left untouched when
// extraction is incomplete.
func (s *Service) extractAndSave(g *Gifticon, text string) error {
	now := s.timeSource.Now()

	result, err := extract.Extract(text, now)
	if err != nil {
		slog.Warn("Gifticon fields incomplete", "source", g.SourceRef, "error", err)
		return fmt.Errorf("extracting fields: %w", err)
	}

	g.ItemName = result.ItemName
	g.Merchant = result.Merchant
	g.ExpiryDate = result.ExpiryDate
	g.Code = result.Code
	g.CreatedAt = now
	g.UpdatedAt = now

	if err := s.db.InsertGifticon(g); err != nil {
		return fmt.Errorf("saving gifticon: %w", err)
	}
	slog.Info("Gifticon saved",
		"id", g.ID,
		"item", g.ItemName,
		"merchant", g.Merchant,
		"expiry", g.ExpiryDate,
		"has_code", result.HasCode(),
	)
	return nil
}

// GetGifticon retrieves a gifticon by ID
func (s *Service) GetGifticon(id string) (*Gifticon, error) {
	g, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, fmt.Errorf("getting gifticon: %w", err)
	}
	return g, nil
}

// ListGifticons returns all gifticons, soonest expiry first
func (s *Service) ListGifticons() ([]*Gifticon, error) {
	gifticons, err := s.db.ListGifticons()
	if err != nil {
		return nil, fmt.Errorf("listing gifticons: %w", err)
	}
	return gifticons, nil
}

// ListExpiring returns the gifticons that are still usable and expire
// within the given number of days.
func (s *Service) ListExpiring(days int) ([]*Gifticon, error) {
	all, err := s.ListGifticons()
	if err != nil {
		return nil, err
	}
	now := s.timeSource.Now()
	expiring := make([]*Gifticon, 0)
	for _, g := range all {
		if left := g.DaysLeft(now); left >= 0 && left <= days {
			expiring = append(expiring, g)
		}
	}
	return expiring, nil
}

// Search returns the gifticons whose item or merchant fuzzily matches
// query, closest first.
func (s *Service) Search(query string) ([]*Gifticon, error) {
	all, err := s.ListGifticons()
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return all, nil
	}

	targets := make([]string, len(all))
	for i, g := range all {
		targets[i] = g.ItemName + " " + g.Merchant
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	found := make([]*Gifticon, 0, len(ranks))
	for _, r := range ranks {
		found = append(found, all[r.OriginalIndex])
	}
	return found, nil
}

// DeleteGifticon removes a gifticon and its stored image
func (s *Service) DeleteGifticon(id string) error {
	g, err := s.db.GetGifticon(id)
	if err != nil {
		return fmt.Errorf("getting gifticon for deletion: %w", err)
	}

	if g.Filename != "" {
		if err := s.storage.Delete(g.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", g.Filename, "error", err)
		}
	}

	if err := s.db.DeleteGifticon(id); err != nil {
		return fmt.Errorf("deleting gifticon from database: %w", err)
	}
	return nil
}

// GetGifticonFile retrieves the stored image of an uploaded gifticon
func (s *Service) GetGifticonFile(id string) ([]byte, string, error) {
	g, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting gifticon: %w", err)
	}
	if g.Filename == "" {
		return nil, "", fmt.Errorf("%w: gifticon %s has no stored image", ErrNotFound, id)
	}

	data, err := s.storage.Get(g.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting gifticon file: %w", err)
	}
	return data, g.ContentType, nil
}
