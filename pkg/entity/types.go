package entity

// Entity type names as they appear in API paths and state keys.
const (
	Tags     = "tags"
	Topics   = "topics"
	Sections = "sections"
	Persons  = "persons"
	Articles = "articles"
	Images   = "images"
	Polls    = "polls"
)

// Types lists every entity type known to the content manager, in menu order.
func Types() []string {
	return []string{Articles, Sections, Topics, Tags, Persons, Images, Polls}
}

// IsKnownType reports whether name is one of Types.
func IsKnownType(name string) bool {
	for _, t := range Types() {
		if t == name {
			return true
		}
	}
	return false
}
