package index

// Document is one indexable person record. Identity is ID, which is
// unique across the corpus; Fields maps field names to raw text.
// Documents are immutable once indexed — a corpus change requires a
// full rebuild.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Posting records one token occurrence set: which document, which
// field, and how many times the token appears in that field.
type Posting struct {
	DocID     string `json:"d"`
	Field     string `json:"f"`
	Frequency int    `json:"n"`
}

// PostingList is a set of postings for a single token.
type PostingList []Posting

// TermEntry pairs a (field, token) key with its postings. Used by the
// snapshot codec, which stores the index as a flat sorted term list.
type TermEntry struct {
	Field    string      `json:"field"`
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}
