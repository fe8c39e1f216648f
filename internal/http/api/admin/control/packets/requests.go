package packets

import "github.com/Nixie-Tech-LLC/routine/internal/model"

// PublishRoutineRequest is a full replacement document for one department.
// version and updatedAt are assigned by the server.
type PublishRoutineRequest = model.RemoteDocument

// body for PUT /api/admin/routines/:department/courses
type CourseNamesRequest struct {
	Courses map[string]string `json:"courses" binding:"required"`
}
