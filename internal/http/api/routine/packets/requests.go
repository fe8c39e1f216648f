package packets

// query for GET /api/routine/entries
type EntriesQuery struct {
	Day string `form:"day"`
}
