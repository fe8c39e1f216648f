package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

func documentKey(department string) string { return "routine:doc:" + department }

func coursesKey(department string) string { return "routine:courses:" + department }

// DocumentSource serves routine documents kept as one Redis hash per
// department. The schedule rows are stored as a JSON array in the
// "schedule" field; the remaining fields are scalars so the version can be
// probed without transferring the schedule.
type DocumentSource struct {
	client *redis.Client
}

func NewDocumentSource(client *redis.Client) *DocumentSource {
	return &DocumentSource{client: client}
}

func classify(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return apperr.Wrap(apperr.DataNotFound, op, err)
	}
	return apperr.Wrap(apperr.Network, op, err)
}

func parseMillis(op, field string, v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, apperr.New(apperr.DataParsing, op, field+" is missing")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.DataParsing, op, err)
	}
	return n, nil
}

func (s *DocumentSource) FetchVersion(ctx context.Context, department string) (model.VersionInfo, error) {
	const op = "redis.FetchVersion"

	vals, err := s.client.HMGet(ctx, documentKey(department), "version", "updatedAt").Result()
	if err != nil {
		return model.VersionInfo{}, classify(op, err)
	}
	if vals[0] == nil && vals[1] == nil {
		return model.VersionInfo{}, apperr.New(apperr.DataNotFound, op, "no routine published for "+department)
	}

	version, err := parseMillis(op, "version", vals[0])
	if err != nil {
		return model.VersionInfo{}, err
	}
	info := model.VersionInfo{Department: department, Version: version}
	if vals[1] != nil {
		if info.UpdatedAt, err = parseMillis(op, "updatedAt", vals[1]); err != nil {
			return model.VersionInfo{}, err
		}
	}
	return info, nil
}

func (s *DocumentSource) FetchDocument(ctx context.Context, department string) (*model.RemoteDocument, error) {
	const op = "redis.FetchDocument"

	fields, err := s.client.HGetAll(ctx, documentKey(department)).Result()
	if err != nil {
		return nil, classify(op, err)
	}
	if len(fields) == 0 {
		return nil, apperr.New(apperr.DataNotFound, op, "no routine published for "+department)
	}

	doc := &model.RemoteDocument{
		ID:            fields["id"],
		Semester:      fields["semester"],
		Department:    fields["department"],
		EffectiveFrom: fields["effectiveFrom"],
	}
	for name, dst := range map[string]*int64{
		"version":   &doc.Version,
		"createdAt": &doc.CreatedAt,
		"updatedAt": &doc.UpdatedAt,
	} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		if *dst, err = strconv.ParseInt(raw, 10, 64); err != nil {
			log.Error().Err(err).Str("department", department).Str("field", name).Msg("malformed routine hash")
			return nil, apperr.Wrap(apperr.DataParsing, op, err)
		}
	}
	if raw := fields["schedule"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc.Schedule); err != nil {
			log.Error().Err(err).Str("department", department).Msg("malformed routine schedule")
			return nil, apperr.Wrap(apperr.DataParsing, op, err)
		}
	}
	return doc, nil
}

func (s *DocumentSource) FetchCourseNames(ctx context.Context, department string) (map[string]string, error) {
	names, err := s.client.HGetAll(ctx, coursesKey(department)).Result()
	if err != nil {
		return nil, classify("redis.FetchCourseNames", err)
	}
	return names, nil
}

// Publish replaces the stored document of doc.Department atomically.
func (s *DocumentSource) Publish(ctx context.Context, doc model.RemoteDocument) error {
	const op = "redis.Publish"

	schedule, err := json.Marshal(doc.Schedule)
	if err != nil {
		return apperr.Wrap(apperr.DataParsing, op, err)
	}

	key := documentKey(doc.Department)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":            doc.ID,
			"semester":      doc.Semester,
			"department":    doc.Department,
			"effectiveFrom": doc.EffectiveFrom,
			"version":       doc.Version,
			"createdAt":     doc.CreatedAt,
			"updatedAt":     doc.UpdatedAt,
			"schedule":      string(schedule),
		})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("department", doc.Department).Msg("failed to publish routine to redis")
		return apperr.Wrap(apperr.Network, op, err)
	}
	return nil
}

// SaveCourseNames replaces the course-name table of department.
func (s *DocumentSource) SaveCourseNames(ctx context.Context, department string, names map[string]string) error {
	key := coursesKey(department)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(names) > 0 {
			values := make(map[string]interface{}, len(names))
			for code, name := range names {
				values[code] = name
			}
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Network, "redis.SaveCourseNames", err)
	}
	return nil
}
