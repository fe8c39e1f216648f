package model

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is the identity the routine is filtered by. It is carried in JWT
// claims; this service does not own user records.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	Department     string `json:"department"`
	Batch          string `json:"batch,omitempty"`
	Section        string `json:"section,omitempty"`
	LabSection     string `json:"lab_section,omitempty"`
	TeacherInitial string `json:"teacher_initial,omitempty"`
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
