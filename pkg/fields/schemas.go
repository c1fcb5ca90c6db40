package fields

import "github.com/dispatch-cms/dispatch/pkg/entity"

var schemas = map[string]Schema{
	entity.Tags: {
		Type: entity.Tags,
		Fields: []Field{
			{Name: "name", Kind: Char, Required: true, Searchable: true},
		},
	},
	entity.Topics: {
		Type:     entity.Topics,
		SlugFrom: "name",
		Fields: []Field{
			{Name: "name", Kind: Char, Required: true, Searchable: true},
			{Name: "slug", Kind: Char},
		},
	},
	entity.Sections: {
		Type:     entity.Sections,
		SlugFrom: "name",
		Fields: []Field{
			{Name: "name", Kind: Char, Required: true, Searchable: true},
			{Name: "slug", Kind: Char},
		},
	},
	entity.Persons: {
		Type:     entity.Persons,
		SlugFrom: "full_name",
		Fields: []Field{
			{Name: "full_name", Label: "Full name", Kind: Char, Required: true, Searchable: true},
			{Name: "slug", Kind: Char},
			{Name: "description", Kind: Text},
			{Name: "image", Kind: Ref, Target: entity.Images},
		},
	},
	entity.Articles: {
		Type:     entity.Articles,
		SlugFrom: "headline",
		Fields: []Field{
			{Name: "headline", Kind: Char, Required: true, Searchable: true},
			{Name: "slug", Kind: Char},
			{Name: "snippet", Kind: Text, Searchable: true},
			{Name: "content", Kind: Text},
			{Name: "section", Kind: Ref, Target: entity.Sections},
			{Name: "topic", Kind: Ref, Target: entity.Topics},
			{Name: "tags", Kind: Ref, Many: true, Target: entity.Tags},
			{Name: "authors", Kind: Ref, Many: true, Target: entity.Persons},
			{Name: "featured_image", Label: "Featured image", Kind: Ref, Target: entity.Images},
			{Name: "is_published", Kind: Bool, Default: false},
		},
	},
	entity.Images: {
		Type: entity.Images,
		Fields: []Field{
			{Name: "url", Label: "URL", Kind: Char, Required: true},
			{Name: "title", Kind: Char, Searchable: true},
			{Name: "caption", Kind: Text},
			{Name: "authors", Kind: Ref, Many: true, Target: entity.Persons},
		},
	},
	entity.Polls: {
		Type: entity.Polls,
		Fields: []Field{
			{Name: "name", Kind: Char, Required: true, Searchable: true},
			{Name: "question", Kind: Char, Required: true, Searchable: true},
			{Name: "is_open", Kind: Bool, Default: true},
		},
	},
}

// For returns the schema of entityType.
func For(entityType string) (Schema, bool) {
	s, ok := schemas[entityType]
	return s, ok
}
