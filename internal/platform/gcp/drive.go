package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const maxExportBytes = 20 << 20

var (
	ErrDocNotFound  = errors.New("document not found")
	ErrDocForbidden = errors.New("document not accessible")
)

// DocMeta is the subset of file metadata sync decisions need.
type DocMeta struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

type DocProvider interface {
	Copy(ctx context.Context, sourceID, name string) (string, error)
	Get(ctx context.Context, id string) (DocMeta, error)
	Export(ctx context.Context, id, mimeType string) (string, error)
}

type DriveConfig struct {
	// CopyFolderID is the parent folder for editing copies. Empty keeps the
	// copy next to the original.
	CopyFolderID string
	Options      []option.ClientOption
}

type driveProvider struct {
	log      *logger.Logger
	svc      *drive.Service
	folderID string
}

func NewDriveProvider(ctx context.Context, log *logger.Logger, cfg DriveConfig) (DocProvider, error) {
	opts := cfg.Options
	if len(opts) == 0 {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(drive.DriveScope))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &driveProvider{
		log:      log.With("service", "DriveProvider"),
		svc:      svc,
		folderID: strings.TrimSpace(cfg.CopyFolderID),
	}, nil
}

func (p *driveProvider) Copy(ctx context.Context, sourceID, name string) (string, error) {
	meta := &drive.File{Name: strings.TrimSpace(name)}
	if p.folderID != "" {
		meta.Parents = []string{p.folderID}
	}
	f, err := p.svc.Files.Copy(sourceID, meta).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyDriveError("copy", sourceID, err)
	}
	p.log.Info("Document copied", "source_id", sourceID, "copy_id", f.Id)
	return f.Id, nil
}

func (p *driveProvider) Get(ctx context.Context, id string) (DocMeta, error) {
	f, err := p.svc.Files.Get(id).
		SupportsAllDrives(true).
		Fields("id", "name", "modifiedTime").
		Context(ctx).
		Do()
	if err != nil {
		return DocMeta{}, classifyDriveError("get", id, err)
	}
	meta := DocMeta{ID: f.Id, Name: f.Name}
	if raw := strings.TrimSpace(f.ModifiedTime); raw != "" {
		ts, err := dateparse.ParseAny(raw)
		if err != nil {
			p.log.Warn("Unparseable modifiedTime", "doc_id", id, "raw", raw, "error", err)
		} else {
			meta.ModifiedTime = ts.UTC()
		}
	}
	return meta, nil
}

func (p *driveProvider) Export(ctx context.Context, id, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "text/html"
	}
	resp, err := p.svc.Files.Export(id, mimeType).Context(ctx).Download()
	if err != nil {
		return "", classifyDriveError("export", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("export %s: status=%d", id, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes+1))
	if err != nil {
		return "", fmt.Errorf("export %s: read body: %w", id, err)
	}
	if len(b) > maxExportBytes {
		return "", fmt.Errorf("export %s: body exceeds %d bytes", id, maxExportBytes)
	}
	return string(b), nil
}

func classifyDriveError(op, id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %w", op, id, errors.Join(ErrDocNotFound, err))
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%s %s: %w", op, id, errors.Join(ErrDocForbidden, err))
		}
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
