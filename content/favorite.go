package content

// Favorite is a saved URL.
type Favorite struct {
	URL string
}

// ParseFavorite reads the URL stored in a favorite data record. The content
// is plain text up to the first NUL.
func ParseFavorite(content []byte) *Favorite {
	return &Favorite{URL: text(content)}
}
