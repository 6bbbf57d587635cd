package validator

// Validator validates a struct against the rules declared in its `validate` tags.
type Validator interface {
	// Validate returns nil when data satisfies every rule. Rule violations are
	// reported as a ValidationError keyed by the field's JSON name.
	Validate(data any) error
}
