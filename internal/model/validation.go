package model

// ValidationData holds the legal profile values derived from a schedule.
// It is recomputed on demand and never persisted.
type ValidationData struct {
	Batches         []string            `json:"batches"`
	SectionsByBatch map[string][]string `json:"sections_by_batch"`
	LabSections     []string            `json:"lab_sections"`
	TeacherInitials []string            `json:"teacher_initials"`
	Departments     []string            `json:"departments"`
}

func EmptyValidationData() ValidationData {
	return ValidationData{
		Batches:         []string{},
		SectionsByBatch: map[string][]string{},
		LabSections:     []string{},
		TeacherInitials: []string{},
		Departments:     []string{},
	}
}

func (v ValidationData) IsEmpty() bool {
	return len(v.Batches) == 0 && len(v.SectionsByBatch) == 0 && len(v.LabSections) == 0 &&
		len(v.TeacherInitials) == 0 && len(v.Departments) == 0
}
