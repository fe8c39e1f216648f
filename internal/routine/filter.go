package routine

import (
	"sort"
	"strings"

	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// MatchesUser reports whether entry belongs on user's routine. Comparisons
// are case-sensitive.
func MatchesUser(entry model.ScheduleEntry, user model.User) bool {
	if entry.Department != user.Department {
		return false
	}
	switch user.Role {
	case model.RoleStudent:
		// an entry without a lab-section is shared by every lab group of the section
		return entry.Batch == user.Batch &&
			entry.Section == user.Section &&
			(entry.LabSection == "" || entry.LabSection == user.LabSection)
	case model.RoleTeacher:
		return user.TeacherInitial != "" && entry.TeacherInitial == user.TeacherInitial
	default:
		return false
	}
}

// FilterForUser returns the entries of a department schedule visible to user,
// in input order.
func FilterForUser(entries []model.ScheduleEntry, user model.User) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0)
	for _, e := range entries {
		if MatchesUser(e, user) {
			out = append(out, e)
		}
	}
	return out
}

func FilterByDay(entries []model.ScheduleEntry, day string) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0)
	for _, e := range entries {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out
}

// the campus week starts on Saturday
var weekOrder = map[string]int{
	"saturday": 0, "sat": 0,
	"sunday": 1, "sun": 1,
	"monday": 2, "mon": 2,
	"tuesday": 3, "tue": 3,
	"wednesday": 4, "wed": 4,
	"thursday": 5, "thu": 5,
	"friday": 6, "fri": 6,
}

func dayRank(day string) int {
	if r, ok := weekOrder[strings.ToLower(strings.TrimSpace(day))]; ok {
		return r
	}
	return len(weekOrder)
}

// ActiveDays returns the distinct day values of entries in week order;
// unrecognised day strings follow in lexical order.
func ActiveDays(entries []model.ScheduleEntry) []string {
	seen := make(map[string]struct{})
	days := make([]string, 0)
	for _, e := range entries {
		if _, ok := seen[e.Day]; ok {
			continue
		}
		seen[e.Day] = struct{}{}
		days = append(days, e.Day)
	}
	sort.SliceStable(days, func(i, j int) bool {
		ri, rj := dayRank(days[i]), dayRank(days[j])
		if ri != rj {
			return ri < rj
		}
		return days[i] < days[j]
	})
	return days
}
