// Package webapi exposes studio sessions over HTTP and streams their
// snapshots over websockets.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photo-studio/internal/catalog"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/imaging"
	"photo-studio/internal/presets"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
)

const (
	maxUploadBytes = 25 << 20
	keyPrefix      = "web:"
	ownerHeader    = "X-Owner-ID"
)

type Options struct {
	Sessions   *session.Store
	Presets    *presets.Library
	Hub        *Hub
	Catalog    *catalog.Catalog
	Translator *friendlyerr.Translator
	Logger     zerolog.Logger
	// Static is served at the root when set.
	Static fs.FS
	// RateLimit is the number of API requests per minute and client IP.
	// Zero disables the limiter.
	RateLimit int
	// RequestTimeout bounds backend calls. They are detached from the HTTP
	// request so a client that leaves does not cancel them.
	RequestTimeout time.Duration
}

type Server struct {
	sessions   *session.Store
	presets    *presets.Library
	hub        *Hub
	cat        *catalog.Catalog
	translator *friendlyerr.Translator
	logger     zerolog.Logger
	static     fs.FS
	rateLimit  int
	timeout    time.Duration
}

func New(opts Options) *Server {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	translator := opts.Translator
	if translator == nil {
		translator = friendlyerr.New(opts.Logger)
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(opts.Logger)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	return &Server{
		sessions:   opts.Sessions,
		presets:    opts.Presets,
		hub:        hub,
		cat:        cat,
		translator: translator,
		logger:     opts.Logger,
		static:     opts.Static,
		rateLimit:  opts.RateLimit,
		timeout:    timeout,
	}
}

// backendContext keeps the request's values but not its cancellation; the
// session epoch decides whether a late result is kept.
func (s *Server) backendContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
}

// SessionKey maps a public session id to its store key.
func SessionKey(id string) string { return keyPrefix + id }

// SessionID is the inverse of SessionKey. ok is false for keys owned by
// other front-ends.
func SessionID(key string) (string, bool) {
	return strings.CutPrefix(key, keyPrefix)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, middleware.RealIP, middleware.Recoverer, AccessLog(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(RateLimit(s.rateLimit, time.Minute))
		}

		r.Get("/catalog", s.getCatalog)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.listPresets)
			r.Delete("/{name}", s.deletePreset)
		})

		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Get("/ws", s.watchSession)
			r.Get("/prompt", s.getPrompt)
			r.Get("/result", s.getResult)

			r.Post("/mode", s.setMode)
			r.Post("/repair", s.setRepairSubMode)
			r.Post("/image", s.setImage)
			r.Post("/outfit", s.setOutfit)
			r.Delete("/outfit", s.clearOutfit)
			r.Post("/styles", s.applyStyle)
			r.Post("/fields", s.setFields)

			r.Post("/generate", s.generate)
			r.Post("/analyze", s.analyze)
			r.Post("/enhance", s.enhance)
			r.Post("/explain", s.explain)

			r.Post("/presets", s.savePreset)
			r.Post("/presets/{name}/load", s.loadPreset)
		})
	})

	if s.static != nil {
		r.Handle("/*", http.FileServer(http.FS(s.static)))
	}

	return r
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCatalogView(s.cat))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	entry := s.sessions.Get(SessionKey(id), "")
	writeJSON(w, http.StatusCreated, sessionView{ID: id, State: newStateView(entry.Session.Snapshot())})
}

// lookup resolves the {id} parameter or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return nil, false
	}
	entry, ok := s.sessions.Lookup(SessionKey(id))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return nil, false
	}
	return entry.Session, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: chi.URLParam(r, "id"), State: newStateView(sess.Snapshot())})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookup(w, r); !ok {
		return
	}
	key := SessionKey(chi.URLParam(r, "id"))
	s.sessions.Reset(key)
	s.hub.Drop(key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) watchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.hub.Serve(w, r, SessionKey(chi.URLParam(r, "id")), sess.Snapshot())
}

func (s *Server) getPrompt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	prompt, err := sess.BuildPrompt()
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: prompt, State: newStateView(sess.Snapshot())})
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.Snapshot()
	if !st.HasResult() {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no result yet"})
		return
	}
	w.Header().Set("content-type", st.Result.MIMEType)
	w.Header().Set("content-length", strconv.Itoa(len(st.Result.Data)))
	_, _ = w.Write(st.Result.Data)
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respond(w, sess, sess.SetMode(studio.Mode(strings.ToLower(strings.TrimSpace(req.Mode)))))
}

func (s *Server) setRepairSubMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req repairRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sm, valid := studio.ParseRepairSubMode(req.SubMode)
	if !valid {
		s.writeError(w, sess, fmt.Errorf("%w: %q", studio.ErrUnknownSubMode, req.SubMode))
		return
	}
	s.respond(w, sess, sess.SetRepairSubMode(sm))
}

// setImage stores the subject photo and waits for gender inference, so the
// response already carries the gender or its error.
func (s *Server) setImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	img, ok := readImage(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()
	// Gender failures are reported through the state, not the status code.
	if err := sess.SetPrimaryImage(ctx, img); err != nil && errors.Is(err, studio.ErrClosed) {
		s.writeError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(sess.Snapshot()))
}

func (s *Server) setOutfit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	img, ok := readImage(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, sess.SetOutfitImage(img))
}

func (s *Server) clearOutfit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, sess.ClearOutfitImage())
}

func (s *Server) applyStyle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req styleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Clear {
		s.respond(w, sess, sess.Dispatch(studio.SelectionCleared{}))
		return
	}
	action, err := studio.ActionFor(catalog.Category(req.Category), req.Value)
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	s.respond(w, sess, sess.Dispatch(action))
}

func (s *Server) setFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req fieldsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	apply := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	if req.Details != nil {
		apply(func() error { return sess.SetDetails(*req.Details) })
	}
	if req.AspectRatio != nil {
		apply(func() error { return sess.SetAspectRatio(studio.AspectRatio(strings.TrimSpace(*req.AspectRatio))) })
	}
	if req.EditorPrompt != nil {
		apply(func() error { return sess.SetEditorPrompt(*req.EditorPrompt) })
	}
	if req.MemorialOutfit != nil {
		apply(func() error { return sess.SetMemorialOutfit(*req.MemorialOutfit) })
	}
	if req.MemorialBackground != nil {
		apply(func() error { return sess.SetMemorialBackground(*req.MemorialBackground) })
	}
	if req.NightMode != nil {
		apply(func() error { return sess.SetNightMode(*req.NightMode) })
	}
	s.respond(w, sess, err)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()
	s.respond(w, sess, sess.Generate(ctx))
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()
	s.respond(w, sess, sess.AnalyzeImage(ctx))
}

func (s *Server) enhance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()
	s.respond(w, sess, sess.EnhanceEditorPrompt(ctx))
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()
	text, err := sess.Explain(ctx)
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: text, State: newStateView(sess.Snapshot())})
}

func (s *Server) book(r *http.Request) (*presets.Book, bool) {
	if s.presets == nil {
		return nil, false
	}
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		owner = "web"
	}
	return s.presets.Book("web-" + owner), true
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	book, ok := s.book(r)
	if !ok {
		writeJSON(w, http.StatusOK, []presets.Preset{})
		return
	}
	list, err := book.List(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("preset list failed")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if list == nil {
		list = []presets.Preset{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) savePreset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	book, ok := s.book(r)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, apiError{Error: "presets are disabled"})
		return
	}
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := book.Save(r.Context(), req.Name, sess.Snapshot().Selection)
	switch {
	case errors.Is(err, presets.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
	case err != nil:
		s.logger.Warn().Err(err).Str("name", req.Name).Msg("preset save failed")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: presets.MsgSaveFailed})
	default:
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) loadPreset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	book, ok := s.book(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: presets.ErrUnknown.Error()})
		return
	}
	p, err := book.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
		return
	}
	s.respond(w, sess, sess.Dispatch(studio.PresetLoaded{Styles: p.Styles}))
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	book, ok := s.book(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: presets.ErrUnknown.Error()})
		return
	}
	err := book.Delete(r.Context(), chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, presets.ErrUnknown):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, apiError{Error: presets.MsgDeleteFailed})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// respond writes the session state, or the error mapped to a status code.
func (s *Server) respond(w http.ResponseWriter, sess *studio.Session, err error) {
	if err != nil {
		s.writeError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(sess.Snapshot()))
}

func (s *Server) writeError(w http.ResponseWriter, sess *studio.Session, err error) {
	st := sess.Snapshot()

	var vErr *studio.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: vErr.Message, GenderSlot: vErr.GenderSlot})
	case errors.Is(err, studio.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(st.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, apiError{Error: err.Error(), RetryAfter: st.RetryAfter})
	case errors.Is(err, studio.ErrBusy), errors.Is(err, studio.ErrStale):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
	case errors.Is(err, studio.ErrClosed):
		writeJSON(w, http.StatusGone, apiError{Error: err.Error()})
	case errors.Is(err, studio.ErrUnknownMode), errors.Is(err, studio.ErrUnknownSubMode),
		errors.Is(err, studio.ErrUnknownRatio), errors.Is(err, studio.ErrUnknownCategory),
		errors.Is(err, studio.ErrUnknownAction), errors.Is(err, studio.ErrWrongMode),
		errors.Is(err, studio.ErrGenderRequired):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
	default:
		f := s.translator.Translate(err)
		out := apiError{Error: f.Message, Category: f.Category.String()}
		if f.Category == friendlyerr.RateLimit {
			out.RetryAfter = f.RetryAfter
		}
		writeJSON(w, http.StatusBadGateway, out)
	}
}

// readImage accepts a multipart "image" field or a JSON body with a data URL.
func readImage(w http.ResponseWriter, r *http.Request) (imaging.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("content-type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
			return imaging.Image{}, false
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
			return imaging.Image{}, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
			return imaging.Image{}, false
		}
		return imaging.Image{MIMEType: imaging.NormalizeMIME(header.Header.Get("Content-Type"), data), Data: data}, true
	}

	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return imaging.Image{}, false
	}
	img, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return imaging.Image{}, false
	}
	return img, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
