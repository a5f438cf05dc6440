package gifticon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/giftguard/internal/extract"
)

// maxUploadSize bounds multipart uploads; phone screenshots are far smaller
const maxUploadSize = int64(20 << 20)

// maxTextSize bounds JSON bodies carrying recognized text
const maxTextSize = int64(1 << 20)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error   string          `json:"error"`
	Missing []extract.Field `json:"missing,omitempty"`
}

// textRequest is the body of the text and preview endpoints
type textRequest struct {
	Text      string `json:"text"`
	SourceRef string `json:"source_ref"`
	Memo      string `json:"memo"`
}

// previewResponse carries the extraction result and what it lacks
type previewResponse struct {
	*extract.Result
	Complete bool            `json:"complete"`
	Missing  []extract.Field `json:"missing,omitempty"`
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// statusFor maps a service failure to an HTTP status
func statusFor(err error) int {
	var incomplete *extract.IncompleteError
	switch {
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrNoText), errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRecognition):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports a service failure with its user-facing message
func writeFailure(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: FailureMessage(err)}
	var incomplete *extract.IncompleteError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
	}
	writeJSON(w, statusFor(err), resp)
}

// handleListGifticons returns all gifticons, or a filtered view of them
func (s *Server) handleListGifticons(w http.ResponseWriter, r *http.Request) {
	var (
		gifticons []*Gifticon
		err       error
	)

	query := r.URL.Query()
	switch {
	case query.Get("expiring") != "":
		days, convErr := strconv.Atoi(query.Get("expiring"))
		if convErr != nil || days < 0 {
			corsError(w, "expiring must be a non-negative number of days", http.StatusBadRequest)
			return
		}
		gifticons, err = s.service.ListExpiring(days)
	case query.Get("q") != "":
		gifticons, err = s.service.Search(query.Get("q"))
	default:
		gifticons, err = s.service.ListGifticons()
	}
	if err != nil {
		slog.Error("Error listing gifticons", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if gifticons == nil {
		gifticons = []*Gifticon{}
	}
	writeJSON(w, http.StatusOK, gifticons)
}

// handleUploadGifticon handles a voucher image upload
func (s *Server) handleUploadGifticon(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 20MB."
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file provided"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error reading file. Please try again."})
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(header.Filename)
	}

	g, err := s.service.ProcessUpload(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing gifticon", "filename", header.Filename, "error", err)
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

func decodeTextRequest(w http.ResponseWriter, r *http.Request) (*textRequest, bool) {
	var req textRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextSize)).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// handleCreateFromText saves a gifticon from text recognized on the client
func (s *Server) handleCreateFromText(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}

	g, err := s.service.ProcessText(req.SourceRef, req.Text, req.Memo)
	if err != nil {
		slog.Error("Error saving gifticon from text", "source", req.SourceRef, "error", err)
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

// handleExtract previews extraction without saving
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}

	result, err := s.service.Preview(req.Text)
	if result == nil {
		writeFailure(w, err)
		return
	}

	resp := previewResponse{Result: result, Complete: err == nil}
	var incomplete *extract.IncompleteError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetGifticon returns a single gifticon
func (s *Server) handleGetGifticon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Gifticon ID required", http.StatusBadRequest)
		return
	}
	g, err := s.service.GetGifticon(id)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// handleGetGifticonFile returns the stored image of a gifticon
func (s *Server) handleGetGifticonFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Gifticon ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetGifticonFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteGifticon deletes a gifticon
func (s *Server) handleDeleteGifticon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Gifticon ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteGifticon(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeFailure(w, err)
			return
		}
		slog.Error("Error deleting gifticon", "id", id, "error", err)
		corsError(w, "Error deleting gifticon", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
