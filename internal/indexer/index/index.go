// Package index implements the in-memory inverted text index over
// person records, its build lifecycle, and the snapshot exchange types.
// An Index is built once, is immutable afterwards, and is safe for
// unbounded concurrent reads without locking.
package index

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/searchworks/persondex/internal/indexer/tokenizer"
	apperrors "github.com/searchworks/persondex/pkg/errors"
)

// Index maps tokens to postings per declared text field, keeps keyword
// fields for exact-equality lookup, and retains the document store the
// postings refer to.
type Index struct {
	postings      map[string]map[string]PostingList // field → token → postings
	keywords      map[string]map[string][]string    // field → value → doc ids
	docs          map[string]Document
	textFields    []string
	keywordFields []string
}

// Build constructs an Index from the given documents. Every declared
// text field is tokenized per document, producing one posting per
// distinct token with its in-field frequency; keyword fields are
// recorded verbatim for exact equality. A field declared in textFields
// or keywordFields but present in no document at all is a
// configuration error; absence in only some documents is fine and is
// treated as an empty value.
func Build(docs []Document, textFields, keywordFields []string) (*Index, error) {
	ix := &Index{
		postings:      make(map[string]map[string]PostingList, len(textFields)),
		keywords:      make(map[string]map[string][]string, len(keywordFields)),
		docs:          make(map[string]Document, len(docs)),
		textFields:    append([]string(nil), textFields...),
		keywordFields: append([]string(nil), keywordFields...),
	}
	for _, field := range textFields {
		ix.postings[field] = make(map[string]PostingList)
	}
	for _, field := range keywordFields {
		ix.keywords[field] = make(map[string][]string)
	}

	if len(docs) > 0 {
		if err := validateFields(docs, textFields, keywordFields); err != nil {
			return nil, err
		}
	}

	for _, doc := range docs {
		ix.docs[doc.ID] = doc
		for _, field := range textFields {
			freqs := make(map[string]int)
			for _, token := range tokenizer.Tokenize(doc.Fields[field]) {
				freqs[token]++
			}
			for token, freq := range freqs {
				ix.postings[field][token] = append(ix.postings[field][token], Posting{
					DocID:     doc.ID,
					Field:     field,
					Frequency: freq,
				})
			}
		}
		for _, field := range keywordFields {
			value := doc.Fields[field]
			if value == "" {
				continue
			}
			ix.keywords[field][value] = append(ix.keywords[field][value], doc.ID)
		}
	}
	return ix, nil
}

// validateFields rejects declared fields that appear in no document.
func validateFields(docs []Document, textFields, keywordFields []string) error {
	declared := make([]string, 0, len(textFields)+len(keywordFields))
	declared = append(declared, textFields...)
	declared = append(declared, keywordFields...)

	for _, field := range declared {
		found := false
		for _, doc := range docs {
			if _, ok := doc.Fields[field]; ok {
				found = true
				break
			}
		}
		if !found {
			return apperrors.Newf(apperrors.ErrConfiguration, http.StatusInternalServerError,
				"declared field %q is absent from every document", field)
		}
	}
	return nil
}

// Lookup returns the postings for an exact token in the given text
// field, or nil if the token or field is unknown.
func (ix *Index) Lookup(field, token string) PostingList {
	tokens, ok := ix.postings[field]
	if !ok {
		return nil
	}
	return tokens[token]
}

// LookupToken returns postings for the token across all text fields.
func (ix *Index) LookupToken(token string) PostingList {
	var result PostingList
	for _, field := range ix.textFields {
		result = append(result, ix.postings[field][token]...)
	}
	return result
}

// LookupKeyword returns the ids of documents whose keyword field equals
// value exactly.
func (ix *Index) LookupKeyword(field, value string) []string {
	values, ok := ix.keywords[field]
	if !ok {
		return nil
	}
	return values[value]
}

// Document returns the stored document for id.
func (ix *Index) Document(id string) (Document, bool) {
	doc, ok := ix.docs[id]
	return doc, ok
}

// DocCount returns the number of documents in the index.
func (ix *Index) DocCount() int {
	return len(ix.docs)
}

// TextFields returns the declared text field names.
func (ix *Index) TextFields() []string {
	return ix.textFields
}

// Export flattens the index into a deterministic, serialisable form
// for the snapshot writer: documents sorted by id and term entries
// sorted by (field, term).
func (ix *Index) Export() *Export {
	docs := make([]Document, 0, len(ix.docs))
	for _, doc := range ix.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	entries := make([]TermEntry, 0)
	for _, field := range ix.textFields {
		for term, postings := range ix.postings[field] {
			sorted := append(PostingList(nil), postings...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })
			entries = append(entries, TermEntry{Field: field, Term: term, Postings: sorted})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})

	return &Export{
		TextFields:    ix.textFields,
		KeywordFields: ix.keywordFields,
		Documents:     docs,
		Terms:         entries,
	}
}

// Export is the serialisable snapshot payload of a built index.
type Export struct {
	TextFields    []string    `json:"text_fields"`
	KeywordFields []string    `json:"keyword_fields"`
	Documents     []Document  `json:"documents"`
	Terms         []TermEntry `json:"terms"`
}

// FromExport rehydrates an Index from a snapshot payload. Keyword maps
// are rebuilt from the document store rather than stored separately.
func FromExport(e *Export) (*Index, error) {
	ix := &Index{
		postings:      make(map[string]map[string]PostingList, len(e.TextFields)),
		keywords:      make(map[string]map[string][]string, len(e.KeywordFields)),
		docs:          make(map[string]Document, len(e.Documents)),
		textFields:    append([]string(nil), e.TextFields...),
		keywordFields: append([]string(nil), e.KeywordFields...),
	}
	for _, field := range e.TextFields {
		ix.postings[field] = make(map[string]PostingList)
	}
	for _, field := range e.KeywordFields {
		ix.keywords[field] = make(map[string][]string)
	}
	for _, doc := range e.Documents {
		ix.docs[doc.ID] = doc
		for _, field := range e.KeywordFields {
			if value := doc.Fields[field]; value != "" {
				ix.keywords[field][value] = append(ix.keywords[field][value], doc.ID)
			}
		}
	}
	for _, entry := range e.Terms {
		tokens, ok := ix.postings[entry.Field]
		if !ok {
			return nil, fmt.Errorf("term entry references undeclared field %q", entry.Field)
		}
		for _, p := range entry.Postings {
			if _, ok := ix.docs[p.DocID]; !ok {
				return nil, fmt.Errorf("posting for term %q references unknown document %q", entry.Term, p.DocID)
			}
		}
		tokens[entry.Term] = entry.Postings
	}
	return ix, nil
}
