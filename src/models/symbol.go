package models

// Symbol registry entry types.
const (
	SymbolClassic = "classic"
	SymbolRef     = "table_ref"
)

// MSymbolMetadata records where a catalog symbol came from.
type MSymbolMetadata struct {
	Symbol     string `json:"symbol"`
	Type       string `json:"type"`
	RefSchema  string `json:"ref_schema,omitempty"`
	RefTable   string `json:"ref_table,omitempty"`
	RefField   string `json:"ref_field,omitempty"`
	SourceName string `json:"source_name"`
}
