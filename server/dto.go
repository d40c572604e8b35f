package server

import (
	"github.com/chansereyvath/lessonsearch/indexer"
	"github.com/chansereyvath/lessonsearch/search"
)

type IndexRequest struct {
	Text string `json:"text"`
}

type IndexResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

type StatusResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Indexed    bool   `json:"indexed"`
}

type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type VectorRequest struct {
	Text string `json:"text"`
}

type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// Re-exported so callers of the HTTP package see one response surface.
type (
	AskResponse = indexer.Answer
	Citation    = indexer.Citation
)
