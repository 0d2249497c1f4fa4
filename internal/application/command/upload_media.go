package command

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPLOAD MEDIA COMMAND
// Stores a lesson video or a course thumbnail and returns a signed URL.
// ══════════════════════════════════════════════════════════════════════════════

// MediaKind selects the object path layout.
type MediaKind string

const (
	MediaVideo     MediaKind = "video"
	MediaThumbnail MediaKind = "thumbnail"
)

const (
	// MaxUploadBytes is the largest accepted object (500 MB).
	MaxUploadBytes int64 = 500 * 1024 * 1024

	// SignedURLTTL is how long returned URLs stay valid.
	SignedURLTTL = 365 * 24 * time.Hour
)

// UploadMediaCommand carries one uploaded file.
type UploadMediaCommand struct {
	Actor       Actor
	Kind        MediaKind
	ChapterID   string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate validates the command.
func (c UploadMediaCommand) Validate() error {
	if c.Actor.UserID == "" {
		return shared.ErrMissingCredential
	}
	if err := requireRole(c.Actor.Role.CanAuthorCourses()); err != nil {
		return err
	}
	if c.Kind != MediaVideo && c.Kind != MediaThumbnail {
		return shared.Validation("storage", "Upload", "unknown media kind")
	}
	if c.Body == nil || c.Size <= 0 {
		return shared.Validation("storage", "Upload", "no file provided")
	}
	if c.Size > MaxUploadBytes {
		return shared.Validation("storage", "Upload", fmt.Sprintf("file exceeds %d bytes", MaxUploadBytes))
	}
	if cleanFileName(c.FileName) == "" {
		return shared.Validation("storage", "Upload", "file name is required")
	}
	return nil
}

// UploadMediaResult is the stored object.
type UploadMediaResult struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadMediaHandler handles UploadMediaCommand.
type UploadMediaHandler struct {
	storage ObjectStorage
	clock   shared.Clock
}

// NewUploadMediaHandler creates a new UploadMediaHandler.
func NewUploadMediaHandler(storage ObjectStorage, clock shared.Clock) *UploadMediaHandler {
	return &UploadMediaHandler{storage: storage, clock: clock.OrSystem()}
}

// Handle executes the command.
func (h *UploadMediaHandler) Handle(ctx context.Context, cmd UploadMediaCommand) (*UploadMediaResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock()
	objectPath := MediaPath(cmd.Kind, cmd.Actor.UserID, cmd.ChapterID, cmd.FileName, now)

	contentType := cmd.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.storage.Upload(ctx, objectPath, contentType, cmd.Body, cmd.Size); err != nil {
		return nil, err
	}

	url, err := h.storage.SignedURL(ctx, objectPath, SignedURLTTL)
	if err != nil {
		return nil, err
	}
	return &UploadMediaResult{Path: objectPath, URL: url, ExpiresAt: now.Add(SignedURLTTL)}, nil
}

// MediaPath builds the object path:
//
//	video:     {userId}/{unixMillis}_{chapterId}_{fileName}
//	thumbnail: {userId}/thumbnails/{unixMillis}_{fileName}
func MediaPath(kind MediaKind, userID, chapterID, fileName string, at time.Time) string {
	name := cleanFileName(fileName)
	ms := at.UnixMilli()
	if kind == MediaThumbnail {
		return fmt.Sprintf("%s/thumbnails/%d_%s", userID, ms, name)
	}
	if chapterID == "" {
		chapterID = "unassigned"
	}
	return fmt.Sprintf("%s/%d_%s_%s", userID, ms, chapterID, name)
}

// cleanFileName drops any directory part a client sent along.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
