package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
)

// sniffLen is the number of leading bytes read to detect the content type.
const sniffLen = 3072

var ErrNotFound = errors.New("file not found")

type (
	// BlobStore keeps file contents, addressed by a relative slash separated path.
	BlobStore interface {
		Save(path string, r io.Reader) (int64, error)
		Open(path string) (io.ReadCloser, error)
		Remove(path string) error
	}

	Repository interface {
		CreateFile(ctx context.Context, f File) (File, error)
		ListFiles(ctx context.Context, ownerID string) ([]File, error)
		GetFile(ctx context.Context, id string) (File, error)
		DeleteFile(ctx context.Context, id string) error
	}

	Service interface {
		Upload(ctx context.Context, ownerID, filename string, r io.Reader) (File, error)
		List(ctx context.Context, ownerID string) ([]File, error)
		// Open returns the file metadata and its content; the caller closes the content.
		Open(ctx context.Context, ownerID, id string) (File, io.ReadCloser, error)
		Delete(ctx context.Context, ownerID, id string) error
	}

	service struct {
		repo    Repository
		store   BlobStore
		maxSize int64
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns a file Service. A maxSize <= 0 disables the size limit.
func NewService(repo Repository, store BlobStore, maxSize int64) Service {
	return &service{repo: repo, store: store, maxSize: maxSize, nowFunc: time.Now}
}

func (svc *service) Upload(ctx context.Context, ownerID, filename string, r io.Reader) (File, error) {
	filename = cleanFilename(filename)
	if filename == "" {
		return File{}, core.NewFieldValidationError("file", errors.New("a file name is required"))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return File{}, errors.Wrap(err, "reading upload")
	}
	head = head[:n]
	if n == 0 {
		return File{}, core.NewFieldValidationError("file", errors.New("the file is empty"))
	}
	mtype := mimetype.Detect(head)

	content := io.MultiReader(bytes.NewReader(head), r)
	if svc.maxSize > 0 {
		// one extra byte tells an oversized upload apart
		content = io.LimitReader(content, svc.maxSize+1)
	}

	id := uuid.New().String()
	stored := path.Join(ownerID, id+storedExt(filename, mtype))
	size, err := svc.store.Save(stored, content)
	if err != nil {
		return File{}, errors.Wrap(err, "saving file content")
	}
	if svc.maxSize > 0 && size > svc.maxSize {
		_ = svc.store.Remove(stored)
		return File{}, core.NewFieldValidationError(
			"file", fmt.Errorf("the file exceeds the maximum size of %d bytes", svc.maxSize))
	}

	f, err := svc.repo.CreateFile(ctx, File{
		ID:               id,
		OwnerID:          ownerID,
		OriginalFilename: filename,
		StoredPath:       stored,
		ContentType:      mtype.String(),
		Size:             size,
		CreatedAt:        svc.nowFunc().UTC(),
	})
	if err != nil {
		_ = svc.store.Remove(stored)
		return File{}, err
	}
	return f, nil
}

func (svc *service) List(ctx context.Context, ownerID string) ([]File, error) {
	files, err := svc.repo.ListFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []File{}
	}
	return files, nil
}

func (svc *service) get(ctx context.Context, ownerID, id string) (File, error) {
	f, err := svc.repo.GetFile(ctx, id)
	if err != nil {
		return File{}, err
	}
	if f.OwnerID != ownerID {
		return File{}, ErrNotFound
	}
	return f, nil
}

func (svc *service) Open(ctx context.Context, ownerID, id string) (File, io.ReadCloser, error) {
	f, err := svc.get(ctx, ownerID, id)
	if err != nil {
		return File{}, nil, err
	}
	rc, err := svc.store.Open(f.StoredPath)
	if err != nil {
		return File{}, nil, errors.Wrap(err, "opening file content")
	}
	return f, rc, nil
}

func (svc *service) Delete(ctx context.Context, ownerID, id string) error {
	f, err := svc.get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err = svc.store.Remove(f.StoredPath); err != nil {
		return errors.Wrap(err, "removing file content")
	}
	return svc.repo.DeleteFile(ctx, f.ID)
}

// cleanFilename drops any directory part sent by the client.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

func storedExt(filename string, mtype *mimetype.MIME) string {
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return mtype.Extension()
}
