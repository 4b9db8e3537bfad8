package gemini

import (
	"fmt"

	"google.golang.org/genai"
)

var validationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"isValid": {
			Type:        genai.TypeBoolean,
			Description: "Whether the data is valid according to the schema.",
		},
		"validationErrors": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "A list of validation errors, if any.",
		},
		"reasoning": {
			Type:        genai.TypeString,
			Description: "The reasoning behind the validation result.",
		},
	},
	Required: []string{"isValid", "validationErrors", "reasoning"},
}

func validationPrompt(schemaDescription, data string) string {
	return fmt.Sprintf(`You are a data validation expert. You will receive data and a schema description.
Determine whether the data is valid according to the schema.

Schema Description: %s

Data: %s

Respond with a JSON object containing:
- isValid (boolean): true if the data is valid, false otherwise.
- validationErrors (string[]): the validation errors; an empty array when the data is valid.
- reasoning (string): why the data is valid or invalid, naming the violated fields.
`, schemaDescription, data)
}

func summaryPrompt(dataset string) string {
	return "Summarize the following dataset, highlighting the key trends and patterns:\n\n" + dataset
}
