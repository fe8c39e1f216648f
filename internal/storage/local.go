package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// LocalSource reads routine documents from a directory. It is meant for
// development and single-host deployments.
type LocalSource struct {
	dir string
}

func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{dir: dir}
}

func (ls *LocalSource) read(op, key string) ([]byte, error) {
	body, err := os.ReadFile(filepath.Join(ls.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(apperr.DataNotFound, op, err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, op, err)
	}
	return body, nil
}

// write replaces key atomically so readers never see a partial document.
func (ls *LocalSource) write(key string, v any) error {
	path := filepath.Join(ls.dir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".routine-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (ls *LocalSource) FetchVersion(_ context.Context, department string) (model.VersionInfo, error) {
	const op = "storage.local.FetchVersion"
	body, err := ls.read(op, documentKey(department))
	if err != nil {
		return model.VersionInfo{}, err
	}
	return decodeVersion(op, department, body)
}

func (ls *LocalSource) FetchDocument(_ context.Context, department string) (*model.RemoteDocument, error) {
	const op = "storage.local.FetchDocument"
	body, err := ls.read(op, documentKey(department))
	if err != nil {
		return nil, err
	}
	return decodeDocument(op, body)
}

func (ls *LocalSource) FetchCourseNames(_ context.Context, department string) (map[string]string, error) {
	const op = "storage.local.FetchCourseNames"
	body, err := ls.read(op, coursesKey(department))
	if err != nil {
		return nil, err
	}
	return decodeCourses(op, body)
}

func (ls *LocalSource) Publish(_ context.Context, doc model.RemoteDocument) error {
	key := documentKey(doc.Department)
	if err := ls.write(key, doc); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to publish routine document")
		return apperr.Wrap(apperr.Network, "storage.local.Publish", err)
	}
	log.Debug().Str("key", key).Int64("version", doc.Version).Msg("routine document written")
	return nil
}

func (ls *LocalSource) SaveCourseNames(_ context.Context, department string, names map[string]string) error {
	if err := ls.write(coursesKey(department), names); err != nil {
		return apperr.Wrap(apperr.Network, "storage.local.SaveCourseNames", err)
	}
	return nil
}
