package loam

// NoteMetadata is the frontmatter of a knowledge note.
type NoteMetadata struct {
	ID    string   `json:"id" mapstructure:"id"`
	Title string   `json:"title" mapstructure:"title"`
	Tags  []string `json:"tags" mapstructure:"tags"`
	// Draft notes are not ingested.
	Draft bool `json:"draft" mapstructure:"draft"`
}
