package routine

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names instead of Go struct names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type stringSet map[string]struct{}

func (s stringSet) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ExtractValidationData derives the legal profile values from a schedule in a
// single pass. Section, lab-section and teacher-initial values are trimmed
// and upper-cased; blank values are skipped.
func ExtractValidationData(entries []model.ScheduleEntry) model.ValidationData {
	batches := stringSet{}
	sections := map[string]stringSet{}
	labs := stringSet{}
	initials := stringSet{}
	departments := stringSet{}

	for _, e := range entries {
		batch := strings.TrimSpace(e.Batch)
		batches.add(batch)
		if section := normalizeCode(e.Section); batch != "" && section != "" {
			if sections[batch] == nil {
				sections[batch] = stringSet{}
			}
			sections[batch].add(section)
		}
		labs.add(normalizeCode(e.LabSection))
		initials.add(normalizeCode(e.TeacherInitial))
		departments.add(strings.TrimSpace(e.Department))
	}

	data := model.EmptyValidationData()
	data.Batches = batches.sorted()
	for batch, set := range sections {
		data.SectionsByBatch[batch] = set.sorted()
	}
	data.LabSections = labs.sorted()
	data.TeacherInitials = initials.sorted()
	data.Departments = departments.sorted()
	return data
}

// ProfileForm is the profile registration input checked against the
// current schedule.
type ProfileForm struct {
	Name           string `json:"name"            validate:"required"`
	Role           string `json:"role"            validate:"required,oneof=student teacher"`
	Department     string `json:"department"      validate:"required"`
	Batch          string `json:"batch"           validate:"required_if=Role student"`
	Section        string `json:"section"         validate:"required_if=Role student"`
	LabSection     string `json:"lab_section"`
	TeacherInitial string `json:"teacher_initial" validate:"required_if=Role teacher"`
}

// clean trims every field. Section, lab section and teacher initial are
// upper-cased to match the extracted validation data and the filter, which
// compares exactly.
func (f *ProfileForm) clean() {
	f.Name = strings.TrimSpace(f.Name)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	f.Department = strings.TrimSpace(f.Department)
	f.Batch = strings.TrimSpace(f.Batch)
	f.Section = normalizeCode(f.Section)
	f.LabSection = normalizeCode(f.LabSection)
	f.TeacherInitial = normalizeCode(f.TeacherInitial)
}

// ToUser builds the filter identity for a validated form.
func (f ProfileForm) ToUser(id string) model.User {
	u := model.User{
		ID:         id,
		Name:       f.Name,
		Role:       f.Role,
		Department: f.Department,
	}
	if f.Role == model.RoleTeacher {
		u.TeacherInitial = f.TeacherInitial
	} else {
		u.Batch = f.Batch
		u.Section = f.Section
		u.LabSection = f.LabSection
	}
	return u
}

func contains(set []string, v string) bool {
	i := sort.SearchStrings(set, v)
	return i < len(set) && set[i] == v
}

var tagMessages = map[string]string{
	"required":    "this field is required",
	"required_if": "this field is required",
	"oneof":       "must be one of student, teacher",
}

func fieldErrors(err error) []apperr.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldError{{Field: "", Error: err.Error()}}
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "failed on " + fe.Tag()
		}
		out = append(out, apperr.FieldError{Field: fe.Field(), Error: msg})
	}
	return out
}

// ValidateProfile cleans form in place and checks it against data. An empty
// set in data leaves that field unconstrained, so registration is never
// blocked when no schedule could be loaded.
func ValidateProfile(form *ProfileForm, data model.ValidationData) error {
	form.clean()
	if err := validate.Struct(form); err != nil {
		return apperr.NewValidation("invalid profile", fieldErrors(err)...)
	}

	var fields []apperr.FieldError
	reject := func(field, msg string) {
		fields = append(fields, apperr.FieldError{Field: field, Error: msg})
	}

	if len(data.Departments) > 0 && !contains(data.Departments, form.Department) {
		reject("department", "unknown department")
	}

	switch form.Role {
	case model.RoleStudent:
		if len(data.Batches) > 0 && !contains(data.Batches, form.Batch) {
			reject("batch", "unknown batch")
		} else if sections := data.SectionsByBatch[form.Batch]; len(sections) > 0 && !contains(sections, form.Section) {
			reject("section", "unknown section for batch "+form.Batch)
		}
		if form.LabSection != "" && len(data.LabSections) > 0 && !contains(data.LabSections, form.LabSection) {
			reject("lab_section", "unknown lab section")
		}
	case model.RoleTeacher:
		if len(data.TeacherInitials) > 0 && !contains(data.TeacherInitials, form.TeacherInitial) {
			reject("teacher_initial", "unknown teacher initial")
		}
	}

	if len(fields) > 0 {
		return apperr.NewValidation("profile does not match the current routine", fields...)
	}
	return nil
}

// ValidateDocument checks a replacement document before it is published.
func ValidateDocument(doc *model.RemoteDocument) error {
	if err := validate.Struct(doc); err != nil {
		return apperr.NewValidation("invalid routine document", fieldErrors(err)...)
	}
	if len(doc.Schedule) == 0 {
		return apperr.NewValidation("invalid routine document", apperr.FieldError{Field: "schedule", Error: "schedule must not be empty"})
	}
	return nil
}
