package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/smallbiznis/costbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrEmptyObject = errors.New("empty_object")

// Object is a file handed to the store.
type Object struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// ObjectStore keeps uploaded files and returns a stable public reference for each.
type ObjectStore interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// LocalStore writes objects under a directory that the HTTP server exposes read-only.
type LocalStore struct {
	dir     string
	baseURL string
	clock   clock.Clock
	log     *zap.Logger
}

type Params struct {
	fx.In

	Cfg   config.Config
	Clock clock.Clock
	Log   *zap.Logger
}

func New(p Params) (ObjectStore, error) {
	return NewLocalStore(p.Cfg.StorageDir, p.Cfg.StoragePublicBaseURL, p.Clock, p.Log)
}

func NewLocalStore(dir, baseURL string, clk clock.Clock, log *zap.Logger) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   clk,
		log:     log.Named("storage.local"),
	}, nil
}

// Dir is the root directory objects are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Upload(ctx context.Context, obj Object) (string, error) {
	if obj.Body == nil {
		return "", ErrEmptyObject
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := ObjectKey(s.clock.Now(), uuid.NewString(), obj.Name)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	written, err := io.Copy(f, obj.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = ErrEmptyObject
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}

	s.log.Debug("object stored",
		zap.String("key", key),
		zap.String("content_type", obj.ContentType),
		zap.Int64("bytes", written),
	)
	return s.baseURL + "/" + key, nil
}

// ObjectKey builds <yyyy>/<mm>/<id>-<slug><ext> for a file named name.
func ObjectKey(now time.Time, id, name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "file"
	}
	if !isSafeExt(ext) {
		ext = ""
	}
	return fmt.Sprintf("%04d/%02d/%s-%s%s", now.Year(), int(now.Month()), id, stem, ext)
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

var Module = fx.Module("storage",
	fx.Provide(New),
)
