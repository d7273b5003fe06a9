package domain

// Defaults are the properties a freshly placed field of a type starts with
type Defaults struct {
	Label          string
	Width          float64
	Height         float64
	Placeholder    string
	ValidationRule string
	Options        string
}

var defaultsByType = map[FieldType]Defaults{
	TypeSignature: {Label: "Signature", Width: 200, Height: 60, Placeholder: "Sign here"},
	TypeInitial:   {Label: "Initials", Width: 80, Height: 40, Placeholder: "Initial here"},
	TypeText:      {Label: "Text", Width: 200, Height: 32, Placeholder: "Enter text"},
	TypeTextarea:  {Label: "Text Area", Width: 240, Height: 96, Placeholder: "Enter text"},
	TypeDate:      {Label: "Date", Width: 140, Height: 32, Placeholder: "YYYY-MM-DD"},
	TypeCheckbox:  {Label: "Checkbox", Width: 24, Height: 24},
	TypeDropdown:  {Label: "Dropdown", Width: 180, Height: 32, Placeholder: "Select an option", Options: `["Option 1","Option 2","Option 3"]`},
	TypeEmail:     {Label: "Email", Width: 220, Height: 32, Placeholder: "name@example.com"},
	TypePhone:     {Label: "Phone", Width: 180, Height: 32, Placeholder: "+1 (555) 000-0000"},
	TypeImage:     {Label: "Image", Width: 160, Height: 120, Placeholder: "Upload image"},
	TypeFormula:   {Label: "Formula", Width: 140, Height: 32},
	TypeRadio:     {Label: "Radio Group", Width: 160, Height: 72, Options: `["Option 1","Option 2"]`},
	TypePayment:   {Label: "Payment", Width: 180, Height: 40, Placeholder: "0.00"},
	TypeNumber:    {Label: "Number", Width: 120, Height: 32, Placeholder: "0"},
}

// DefaultsFor returns the defaults for t. Unknown types get a plain text box.
func DefaultsFor(t FieldType) Defaults {
	if d, ok := defaultsByType[t]; ok {
		return d
	}
	return defaultsByType[TypeText]
}

// ApplyDefaults fills empty label, size and type-specific extras on f from
// its type's defaults. Values already set are kept.
func ApplyDefaults(f *Field) {
	d := DefaultsFor(f.Type)
	if f.Label == "" {
		f.Label = d.Label
	}
	if f.Width <= 0 {
		f.Width = d.Width
	}
	if f.Height <= 0 {
		f.Height = d.Height
	}
	if f.Placeholder == "" {
		f.Placeholder = d.Placeholder
	}
	if f.ValidationRule == "" {
		f.ValidationRule = d.ValidationRule
	}
	if f.Options == "" {
		f.Options = d.Options
	}
	if f.PageNumber < 1 {
		f.PageNumber = 1
	}
	if f.X < 0 {
		f.X = 0
	}
	if f.Y < 0 {
		f.Y = 0
	}
}
