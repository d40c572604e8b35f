package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chansereyvath/lessonsearch/indexer"
	"github.com/chansereyvath/lessonsearch/search"
)

const (
	indexTimeout = 120 * time.Second
	askTimeout   = 60 * time.Second
	queryTimeout = 30 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.metrics.Snapshot())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), indexTimeout)
	defer cancel()

	count, err := s.indexer.IndexDocument(ctx, docID, req.Text)
	if err != nil {
		if errors.Is(err, indexer.ErrEmptyInput) || errors.Is(err, indexer.ErrNoChunks) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, IndexResponse{DocumentID: docID, Chunks: count})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	count, err := s.indexer.GetIndexStatus(ctx, docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, StatusResponse{DocumentID: docID, Chunks: count, Indexed: count > 0})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	if err := s.indexer.DeleteDocument(ctx, docID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	answer, err := s.indexer.AnswerQuestion(ctx, docID, req.Question, req.TopK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, answer)
}

func (s *Server) handleVector(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	var req VectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), indexTimeout)
	defer cancel()

	vec := s.gw.EmbedLongText(ctx, req.Text)
	if vec == nil {
		http.Error(w, "text could not be embedded", http.StatusBadGateway)
		return
	}
	if err := s.indexer.StoreSingleVector(ctx, docID, vec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"success": true, "dimension": len(vec)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	text := params.Get("q")
	if text == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	q := search.Query{
		Text:       text,
		Subject:    params.Get("subject"),
		DocumentID: params.Get("document_id"),
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	if v := params.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid threshold", http.StatusBadRequest)
			return
		}
		q.Threshold = f
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	results := s.engine.Search(ctx, q)
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, SearchResponse{Query: text, Results: results})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
