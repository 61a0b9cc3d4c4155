package model

// SearchResult is one marketplace listing in the shape shared by every source.
type SearchResult struct {
	Title     string  `json:"title"`
	Price     string  `json:"price"`
	Source    string  `json:"source"`
	Link      string  `json:"link"`
	Condition *string `json:"condition"`
	Seller    *string `json:"seller"`
}
