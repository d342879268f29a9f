package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/zombor/billed/internal/app"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

// maxEventSize bounds an event body, attachment included
const maxEventSize = int64(10 << 20)

// targetPrefix marks form fields carrying attributes of the event target
const targetPrefix = "target-"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, http.StatusBadRequest, view.LoginPage{Error: "Formulaire invalide"})
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		slog.Info("Rejected login", "email", email)
		s.renderLogin(w, http.StatusBadRequest, view.LoginPage{Email: email, Error: "Adresse email invalide"})
		return
	}

	sess := session.Session{Type: session.TypeEmployee, Email: email}
	token, err := s.tokens.Issue(sess)
	if err != nil {
		slog.Error("Error issuing session", "email", email, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// a new login starts from a fresh shell
	s.dropShell(email)
	s.tokens.SetCookie(w, token)
	slog.Info("Employee signed in", "email", email)
	http.Redirect(w, r, app.PathBills, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.tokens.FromRequest(r); err == nil {
		s.dropShell(sess.Email)
	}
	s.tokens.ClearCookie(w)
	http.Redirect(w, r, app.PathLogin, http.StatusSeeOther)
}

func (s *Server) handlePage(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh := s.shellFor(sessionFrom(r))

		sh.mu.Lock()
		defer sh.mu.Unlock()

		sh.router.NavigateTo(r.Context(), path)
		w.Header().Set(PathHeader, sh.router.Current())
		writeMarkup(w, http.StatusOK, sh.page.Markup())
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sh := s.shellFor(sessionFrom(r))

	ev, err := readEvent(w, r)
	if err != nil {
		slog.Error("Error reading event", "event", r.PathValue("name"), "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File is too large. Maximum size is 10MB.", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid event", http.StatusBadRequest)
		return
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if err := sh.dispatcher.Dispatch(r.Context(), ev); err != nil {
		if errors.Is(err, app.ErrNoHandler) {
			http.Error(w, "Unknown event", http.StatusNotFound)
			return
		}
		slog.Error("Error dispatching event", "event", ev.Name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
	defer cancel()
	if err := sh.router.Settle(ctx); err != nil {
		slog.Warn("Responding before upload settled", "event", ev.Name, "error", err)
	}

	w.Header().Set(PathHeader, sh.router.Current())
	writeMarkup(w, http.StatusOK, sh.page.Markup())
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := s.attachments.Attachment(r.Context(), sessionFrom(r).Email, id)
	if err != nil {
		var serr *store.Error
		if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		slog.Error("Error fetching attachment", "id", id, "error", err)
		http.Error(w, "Attachment unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Cache-Control", "private")
	if _, err := w.Write(a.Data); err != nil {
		slog.Error("Error writing attachment", "id", id, "error", err)
	}
}

// readEvent decodes a url-encoded or multipart event body
func readEvent(w http.ResponseWriter, r *http.Request) (*app.Event, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventSize)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxEventSize)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, err
	}

	ev := &app.Event{
		Name:   r.PathValue("name"),
		Target: app.Element{Attrs: make(map[string]string)},
		Form:   make(map[string]string),
	}
	for key, values := range r.PostForm {
		if len(values) == 0 {
			continue
		}
		if attr, ok := strings.CutPrefix(key, targetPrefix); ok {
			ev.Target.Attrs[attr] = values[0]
			continue
		}
		ev.Form[key] = values[0]
	}

	if r.MultipartForm != nil {
		if headers := r.MultipartForm.File["file"]; len(headers) > 0 {
			header := headers[0]
			f, err := header.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				return nil, err
			}
			ev.File = &app.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	}
	return ev, nil
}
