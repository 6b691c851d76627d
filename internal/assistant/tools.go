package assistant

// Schema is a JSON-schema fragment in the shape the completion service
// expects for function declarations.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// FunctionDeclaration describes one callable tool.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

const (
	toolAddEvent    = "addEvent"
	toolUpdateEvent = "updateEvent"
	toolDeleteEvent = "deleteEvent"
)

var categoryEnum = []string{"Family", "Work", "School", "Fun", "Chore", "Health", "Other"}

// toolDeclarations returns the calendar mutation tools offered to the
// model on every turn.
func toolDeclarations() []FunctionDeclaration {
	return []FunctionDeclaration{
		{
			Name:        toolAddEvent,
			Description: "Add a new event to the calendar.",
			Parameters: &Schema{
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"title":       {Type: "STRING", Description: "The title of the event"},
					"start":       {Type: "STRING", Description: "Start time in ISO format (e.g., 2023-10-27T10:00:00)"},
					"end":         {Type: "STRING", Description: "End time in ISO format"},
					"description": {Type: "STRING", Description: "Optional description"},
					"location":    {Type: "STRING", Description: "Optional location"},
					"category": {
						Type:        "STRING",
						Description: "One of: Family, Work, School, Fun, Chore, Health, Other",
						Enum:        categoryEnum,
					},
					"attendeeNames": {
						Type:        "ARRAY",
						Items:       &Schema{Type: "STRING"},
						Description: "List of family member names attending",
					},
				},
				Required: []string{"title", "start", "end", "category"},
			},
		},
		{
			Name:        toolUpdateEvent,
			Description: "Update an existing event. Only provide fields that need changing.",
			Parameters: &Schema{
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"id":            {Type: "STRING", Description: "The ID of the event to update"},
					"title":         {Type: "STRING"},
					"start":         {Type: "STRING"},
					"end":           {Type: "STRING"},
					"description":   {Type: "STRING"},
					"location":      {Type: "STRING"},
					"category":      {Type: "STRING", Enum: categoryEnum},
					"attendeeNames": {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        toolDeleteEvent,
			Description: "Delete an event from the calendar.",
			Parameters: &Schema{
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"id": {Type: "STRING", Description: "The ID of the event to delete"},
				},
				Required: []string{"id"},
			},
		},
	}
}
