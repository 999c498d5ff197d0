package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/review"
	"github.com/japaniel/readerer/pkg/sm2"
	"github.com/japaniel/readerer/pkg/tokenize"
)

// maxRequestBody caps JSON request bodies, which may carry whole articles.
const maxRequestBody = 16 << 20

// Server exposes review and ingestion as a JSON API.
type Server struct {
	reviewer *review.Reviewer
	ingester *ingest.Ingester
	log      zerolog.Logger
	router   *http.ServeMux
	now      func() time.Time
}

// NewServer creates and configures a new server.
func NewServer(reviewer *review.Reviewer, ingester *ingest.Ingester, log zerolog.Logger) *Server {
	s := &Server{
		reviewer: reviewer,
		ingester: ingester,
		log:      log,
		router:   http.NewServeMux(),
		now:      time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /review", s.handleGetReview())
	s.router.HandleFunc("POST /review", s.handlePostReview())
	s.router.HandleFunc("POST /add", s.handleAdd())
	s.router.HandleFunc("POST /retokenize", s.handleRetokenize())
}

// reviewResponse is the next sentence plus the number of words due now.
type reviewResponse struct {
	review.Selection
	ReviewsRemaining int `json:"reviews_remaining"`
}

type reviewRequest struct {
	SentenceID int64    `json:"review_sentence_id"`
	Quality    *float64 `json:"response_quality"`
}

type addRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type addResponse struct {
	Sentences int      `json:"sentences"`
	Failed    []string `json:"failed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeNext(w, r)
	}
}

// handlePostReview applies a review to every word of a sentence and
// responds with the next sentence.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if !s.decode(w, r, &req) {
			return
		}
		if req.SentenceID <= 0 || req.Quality == nil {
			s.writeError(w, http.StatusBadRequest, errors.New("review_sentence_id and response_quality are required"))
			return
		}
		if err := s.reviewer.ReviewSentence(r.Context(), req.SentenceID, *req.Quality, s.now()); err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		s.writeNext(w, r)
	}
}

func (s *Server) handleAdd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addRequest
		if !s.decode(w, r, &req) {
			return
		}
		if req.Text == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("text is required"))
			return
		}

		n, err := s.ingester.AddText(r.Context(), req.Text, req.Source)
		resp := addResponse{Sentences: n}
		if err != nil {
			var te *tokenize.TokenizeError
			if !errors.As(err, &te) {
				s.writeError(w, http.StatusInternalServerError, err)
				return
			}
			// Only some sentences failed to analyze; the rest are stored.
			for _, e := range unjoin(err) {
				if errors.As(e, &te) {
					resp.Failed = append(resp.Failed, te.Sentence)
				}
			}
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRetokenize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ingester.Retokenize(r.Context()); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeNext(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	sel, err := s.reviewer.NextSentence(r.Context(), now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	count, err := s.reviewer.Count(r.Context(), now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reviewResponse{Selection: sel, ReviewsRemaining: count})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, sm2.ErrInvalidQuality) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
