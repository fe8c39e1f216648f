// Package routinetest provides an in-memory remote routine source for tests.
package routinetest

import (
	"context"
	"sync"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// Remote is an in-memory remote source. It also implements the admin
// publish path so a published document is immediately fetchable.
type Remote struct {
	mu      sync.Mutex
	docs    map[string]model.RemoteDocument
	courses map[string]map[string]string
	err     error

	fetches      int
	versionCalls int
	courseCalls  int
}

func NewRemote() *Remote {
	return &Remote{
		docs:    map[string]model.RemoteDocument{},
		courses: map[string]map[string]string{},
	}
}

// Put stores doc under doc.Department.
func (r *Remote) Put(doc model.RemoteDocument) {
	r.PutAs(doc.Department, doc)
}

// PutAs stores doc under department regardless of doc.Department.
func (r *Remote) PutAs(department string, doc model.RemoteDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[department] = doc
}

// Fail makes every later call return err; nil restores normal operation.
func (r *Remote) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Remote) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func (r *Remote) CourseCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.courseCalls
}

func (r *Remote) FetchDocument(_ context.Context, department string) (*model.RemoteDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.err != nil {
		return nil, r.err
	}
	doc, ok := r.docs[department]
	if !ok {
		return nil, apperr.New(apperr.DataNotFound, "routinetest.FetchDocument", "no routine published for "+department)
	}
	doc.Schedule = append([]model.RemoteEntry(nil), doc.Schedule...)
	return &doc, nil
}

func (r *Remote) FetchVersion(_ context.Context, department string) (model.VersionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versionCalls++
	if r.err != nil {
		return model.VersionInfo{}, r.err
	}
	doc, ok := r.docs[department]
	if !ok {
		return model.VersionInfo{}, apperr.New(apperr.DataNotFound, "routinetest.FetchVersion", "no routine published for "+department)
	}
	return model.VersionInfo{Department: department, Version: doc.Version, UpdatedAt: doc.UpdatedAt}, nil
}

func (r *Remote) FetchCourseNames(_ context.Context, department string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courseCalls++
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]string, len(r.courses[department]))
	for k, v := range r.courses[department] {
		out[k] = v
	}
	return out, nil
}

func (r *Remote) Publish(_ context.Context, doc model.RemoteDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.docs[doc.Department] = doc
	return nil
}

func (r *Remote) SaveCourseNames(_ context.Context, department string, names map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.courses[department] = names
	return nil
}

// Document builds a department document with the given version and rows.
func Document(department string, version int64, rows ...model.RemoteEntry) model.RemoteDocument {
	return model.RemoteDocument{
		ID:            department + "-fall-25",
		Semester:      "Fall 2025",
		Department:    department,
		EffectiveFrom: "2025-09-01",
		Schedule:      rows,
		Version:       version,
		CreatedAt:     version,
		UpdatedAt:     version,
	}
}
