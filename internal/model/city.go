package model

// City represents a single city record as stored in the city_data table.
// Records are written once during import and never mutated afterwards.
type City struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	ASCIIName   string  `json:"ascii_name,omitempty"`
	State       string  `json:"state,omitempty"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Population  int64   `json:"population,omitempty"`
}

// Column describes one column of the city_data table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableInfo summarizes the city_data table: its column layout and row count.
type TableInfo struct {
	Columns  []Column `json:"columns"`
	RowCount int      `json:"row_count"`
}
