package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// Source is a document-store backed routine source. Both implementations
// keep one JSON object per department.
type Source interface {
	FetchVersion(ctx context.Context, department string) (model.VersionInfo, error)
	FetchDocument(ctx context.Context, department string) (*model.RemoteDocument, error)
	FetchCourseNames(ctx context.Context, department string) (map[string]string, error)
	Publish(ctx context.Context, doc model.RemoteDocument) error
	SaveCourseNames(ctx context.Context, department string, names map[string]string) error
}

var (
	_ Source = (*LocalSource)(nil)
	_ Source = (*SpacesSource)(nil)
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeName turns a department code into a safe object name.
func normalizeName(department string) string {
	name := strings.ReplaceAll(strings.TrimSpace(department), " ", "_")
	name = unsafeName.ReplaceAllString(name, "")
	if name == "" {
		name = "department"
	}
	return name
}

func documentKey(department string) string {
	return "routines/" + normalizeName(department) + ".json"
}

func coursesKey(department string) string {
	return "routines/" + normalizeName(department) + ".courses.json"
}

// versionHeader decodes only the top-level fields needed by a version probe.
type versionHeader struct {
	Department string `json:"department"`
	Version    int64  `json:"version"`
	UpdatedAt  int64  `json:"updatedAt"`
}

func decodeVersion(op, department string, body []byte) (model.VersionInfo, error) {
	var h versionHeader
	if err := json.Unmarshal(body, &h); err != nil {
		return model.VersionInfo{}, apperr.Wrap(apperr.DataParsing, op, err)
	}
	if h.Department == "" {
		h.Department = department
	}
	return model.VersionInfo{Department: h.Department, Version: h.Version, UpdatedAt: h.UpdatedAt}, nil
}

func decodeDocument(op string, body []byte) (*model.RemoteDocument, error) {
	var doc model.RemoteDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperr.Wrap(apperr.DataParsing, op, err)
	}
	return &doc, nil
}

func decodeCourses(op string, body []byte) (map[string]string, error) {
	names := map[string]string{}
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, apperr.Wrap(apperr.DataParsing, op, fmt.Errorf("course names: %w", err))
	}
	return names, nil
}
