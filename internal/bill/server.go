package bill

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxUploadSize bounds the multipart body of an attachment upload
const maxUploadSize = int64(10 << 20)

// maxBillSize bounds the JSON body of a bill update
const maxBillSize = int64(1 << 20)

// Server exposes the bill store as a JSON API
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials. Empty credentials disable auth.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with its own mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server registering its routes on mux
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Billed"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/bills/{id}/file", s.requireAuth(s.handleGetAttachment))
	s.mux.HandleFunc("GET /api/bills/{id}", s.requireAuth(s.handleGetBill))
	s.mux.HandleFunc("PUT /api/bills/{id}", s.requireAuth(s.handleUpdateBill))
	s.mux.HandleFunc("PUT /api/bills", s.requireAuth(s.handleUpdateBill))
	s.mux.HandleFunc("GET /api/bills", s.requireAuth(s.handleListBills))
	s.mux.HandleFunc("POST /api/bills", s.requireAuth(s.handleCreateDraft))
	s.mux.HandleFunc("OPTIONS /api/", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {}))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves the API on addr
func (s *Server) Start(addr string) error {
	slog.Info("Starting bill API", "address", addr)
	return http.ListenAndServe(addr, s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError hides internal failures behind a generic message
func writeServiceError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "Internal server error"
	}
	writeError(w, message, code)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.service.List(r.URL.Query().Get("email"))
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 10MB.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	draft, err := s.service.CreateDraft(Upload{
		Email:       r.FormValue("email"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		slog.Error("Error creating draft bill", "filename", header.Filename, "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBillSize)
	var data Bill
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "Request body is too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	b, err := s.service.Update(r.PathValue("id"), data)
	if err != nil {
		slog.Error("Error updating bill", "id", r.PathValue("id"), "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.Attachment(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
