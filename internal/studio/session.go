package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"photo-studio/internal/catalog"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/gateway"
	"photo-studio/internal/imaging"
)

type Options struct {
	Gateway    gateway.Gateway
	Catalog    *catalog.Catalog
	Translator *friendlyerr.Translator
	Logger     zerolog.Logger

	// TickInterval drives the rate-limit countdown. Zero means one second;
	// a negative value disables the ticker so callers drive Tick themselves.
	TickInterval time.Duration

	// OnChange receives a snapshot after every state change. It is called
	// without the session lock held.
	OnChange func(State)
}

type task int

const (
	taskGender task = iota
	taskGenerate
	taskAnalyze
	taskEnhance
	taskExplain
)

type ticket struct {
	kind  task
	epoch uint64
	seq   uint64
}

// Session is one user's studio. All methods are safe for concurrent use;
// gateway calls run without the lock and their results are dropped when the
// mode or primary image changed in the meantime.
type Session struct {
	gw         gateway.Gateway
	cat        *catalog.Catalog
	translator *friendlyerr.Translator
	logger     zerolog.Logger
	interval   time.Duration
	onChange   func(State)

	mu       sync.Mutex
	state    State
	epoch    uint64
	seq      uint64
	running  map[task]uint64
	stopTick chan struct{}
	closed   bool
}

func NewSession(opts Options) *Session {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	translator := opts.Translator
	if translator == nil {
		translator = friendlyerr.New(opts.Logger)
	}
	interval := opts.TickInterval
	if interval == 0 {
		interval = time.Second
	}

	return &Session{
		gw:         opts.Gateway,
		cat:        cat,
		translator: translator,
		logger:     opts.Logger,
		interval:   interval,
		onChange:   opts.OnChange,
		state:      initialState(),
		running:    make(map[task]uint64),
	}
}

func (s *Session) Catalog() *catalog.Catalog { return s.cat }

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// update runs fn under the lock and publishes the resulting state.
func (s *Session) update(fn func(st *State) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	err := fn(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()

	s.publish(snap)
	return err
}

func (s *Session) publish(snap State) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// SetMode switches the operating mode. Transient state is reset; the style
// selection, details and aspect ratio survive.
func (s *Session) SetMode(mode Mode) error {
	if _, ok := ParseMode(string(mode)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return s.update(func(st *State) error {
		if st.Mode == mode {
			return nil
		}
		s.epoch++
		s.stopCountdownLocked()
		s.running = make(map[task]uint64)

		next := initialState()
		next.Mode = mode
		next.Selection = st.Selection
		next.Details = st.Details
		next.AspectRatio = st.AspectRatio
		*st = next
		return nil
	})
}

func (s *Session) SetRepairSubMode(sub RepairSubMode) error {
	if _, ok := ParseRepairSubMode(string(sub)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubMode, sub)
	}
	return s.update(func(st *State) error {
		if st.Mode != ModeRepair {
			return ErrWrongMode
		}
		st.RepairSubMode = sub
		st.Prompt = ""
		st.Error = ""
		st.ErrorCategory = friendlyerr.Unknown
		return nil
	})
}

// SetPrimaryImage stores the subject photo and, in modes that need it,
// infers the subject's gender before returning. A zero image clears it.
func (s *Session) SetPrimaryImage(ctx context.Context, img imaging.Image) error {
	var t ticket
	analyze := false

	err := s.update(func(st *State) error {
		s.epoch++
		st.Primary = img
		st.Result = imaging.Image{}
		st.Error = ""
		st.ErrorCategory = friendlyerr.Unknown
		st.GenderError = ""
		st.Prompt = ""
		st.Explanation = ""

		if !st.Mode.infersGender() {
			return nil
		}
		st.Gender = ""
		st.Selection.Clothes = ""
		st.Selection.ClothesColor = ""
		st.Selection.Hairstyle = ""
		delete(s.running, taskGender)
		st.AnalyzingGender = false
		if img.IsZero() || s.gw == nil {
			return nil
		}
		t = s.startLocked(taskGender)
		analyze = true
		return nil
	})
	if err != nil || !analyze {
		return err
	}

	gender, err := s.gw.AnalyzeGender(ctx, img)
	return s.finish(t, func(st *State) {
		if err != nil {
			st.GenderError = s.translator.Scoped(friendlyerr.ScopeGender, err)
			return
		}
		st.Gender = gender
	}, err)
}

// SetOutfitImage stores the outfit reference. In studio mode it replaces the
// clothes selection; in memorial repair it replaces the outfit text.
func (s *Session) SetOutfitImage(img imaging.Image) error {
	return s.update(func(st *State) error {
		st.Outfit = img
		st.Prompt = ""
		if st.Mode == ModeStudio {
			st.Selection.Clothes = ""
			st.Selection.ClothesColor = ""
		}
		if st.Mode == ModeRepair && st.RepairSubMode == RepairMemorial {
			st.MemorialOutfit = ""
		}
		return nil
	})
}

func (s *Session) ClearOutfitImage() error {
	return s.update(func(st *State) error {
		st.Outfit = imaging.Image{}
		st.Prompt = ""
		return nil
	})
}

// Dispatch applies a selection action. Loading a preset also clears the last
// result, error and countdown.
func (s *Session) Dispatch(a Action) error {
	return s.update(func(st *State) error {
		if needsGender(a) && !st.Gender.Valid() {
			return ErrGenderRequired
		}
		next, err := Reduce(st.Selection, a)
		if err != nil {
			return err
		}
		st.Selection = next
		st.Prompt = ""

		if _, ok := a.(PresetLoaded); ok {
			s.stopCountdownLocked()
			st.Result = imaging.Image{}
			st.Error = ""
			st.ErrorCategory = friendlyerr.Unknown
			st.RetryAfter = 0
		}
		return nil
	})
}

func (s *Session) SetDetails(text string) error {
	return s.update(func(st *State) error {
		st.Details = strings.TrimSpace(text)
		return nil
	})
}

func (s *Session) SetAspectRatio(ratio AspectRatio) error {
	if _, ok := ParseAspectRatio(string(ratio)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRatio, ratio)
	}
	return s.update(func(st *State) error {
		st.AspectRatio = ratio
		return nil
	})
}

func (s *Session) SetEditorPrompt(text string) error {
	return s.update(func(st *State) error {
		st.EditorPrompt = text
		return nil
	})
}

// SetMemorialOutfit chooses the memorial outfit by text and drops any outfit
// photo.
func (s *Session) SetMemorialOutfit(text string) error {
	return s.update(func(st *State) error {
		st.MemorialOutfit = strings.TrimSpace(text)
		if st.MemorialOutfit != "" {
			st.Outfit = imaging.Image{}
		}
		return nil
	})
}

func (s *Session) SetMemorialBackground(text string) error {
	return s.update(func(st *State) error {
		st.MemorialBackground = strings.TrimSpace(text)
		return nil
	})
}

func (s *Session) SetNightMode(on bool) error {
	return s.update(func(st *State) error {
		st.NightMode = on
		return nil
	})
}

// SetError puts a message in the main error slot. Front-ends use it for
// failures outside the generation flow, such as preset persistence.
func (s *Session) SetError(msg string) error {
	return s.update(func(st *State) error {
		st.Error = msg
		st.ErrorCategory = friendlyerr.Unknown
		return nil
	})
}

// BuildPrompt validates the current state and returns the prompt Generate
// would send. It changes nothing.
func (s *Session) BuildPrompt() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildPrompt(s.state, s.cat)
}

// Generate validates, builds the prompt and asks the gateway for an image.
// Validation failures and an active countdown never reach the gateway.
func (s *Session) Generate(ctx context.Context) error {
	var (
		t         ticket
		prompt    string
		primary   imaging.Image
		secondary *imaging.Image
		ratio     AspectRatio
		mode      Mode
	)

	err := s.update(func(st *State) error {
		if st.Generating {
			return ErrBusy
		}

		p, err := buildPrompt(*st, s.cat)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				st.Result = imaging.Image{}
				if verr.GenderSlot {
					st.GenderError = verr.Message
				} else {
					st.Error = verr.Message
					st.ErrorCategory = friendlyerr.Unknown
				}
			}
			return err
		}
		st.Prompt = p

		if st.RetryAfter > 0 {
			return ErrRateLimited
		}

		s.stopCountdownLocked()
		st.RetryAfter = 0
		st.Result = imaging.Image{}
		st.Error = ""
		st.ErrorCategory = friendlyerr.Unknown

		prompt, primary, ratio, mode = p, st.Primary, st.AspectRatio, st.Mode
		secondary = secondaryFor(*st)
		t = s.startLocked(taskGenerate)
		return nil
	})
	if err != nil {
		return err
	}
	if s.gw == nil {
		return s.finishGenerate(t, imaging.Image{}, errors.New("no generation backend configured"))
	}

	if mode.portraitLike() {
		framed, rerr := imaging.ResizeToAspectRatio(primary, string(ratio))
		if rerr != nil {
			return s.finishGenerate(t, imaging.Image{}, rerr)
		}
		primary = framed
	}

	start := time.Now()
	result, err := s.gw.GenerateEditedImage(ctx, prompt, primary, secondary)
	s.logger.Debug().Str("mode", string(mode)).Dur("took", time.Since(start)).Err(err).Msg("generation finished")
	return s.finishGenerate(t, result, err)
}

// secondaryFor picks the outfit reference the current mode sends, if any.
func secondaryFor(st State) *imaging.Image {
	if !st.HasOutfit() {
		return nil
	}
	switch {
	case st.Mode == ModeStudio,
		st.Mode == ModeRepair && st.RepairSubMode == RepairMemorial:
		out := st.Outfit
		return &out
	}
	return nil
}

func (s *Session) finishGenerate(t ticket, result imaging.Image, err error) error {
	return s.finish(t, func(st *State) {
		if err != nil {
			f := s.translator.Translate(err)
			st.Error = f.Message
			st.ErrorCategory = f.Category
			if f.Category == friendlyerr.RateLimit && f.RetryAfter > 0 {
				st.RetryAfter = f.RetryAfter
				s.startCountdownLocked()
			}
			return
		}
		st.Result = result
	}, err)
}

// AnalyzeImage replaces the editor prompt with a description of the primary
// image.
func (s *Session) AnalyzeImage(ctx context.Context) error {
	var (
		t   ticket
		img imaging.Image
	)
	err := s.update(func(st *State) error {
		if st.Mode != ModeEditor {
			return ErrWrongMode
		}
		if st.Analyzing {
			return ErrBusy
		}
		if !st.HasPrimary() {
			st.Error = msgAnalyzeNeedImage
			return invalid(msgAnalyzeNeedImage)
		}
		st.Error = ""
		st.ErrorCategory = friendlyerr.Unknown
		img = st.Primary
		t = s.startLocked(taskAnalyze)
		return nil
	})
	if err != nil {
		return err
	}

	desc, err := s.callText(func() (string, error) { return s.gw.DescribeImage(ctx, img) })
	return s.finish(t, func(st *State) {
		if err != nil {
			f := s.translator.Translate(err)
			st.Error = friendlyerr.ScopeAnalyze + ": " + f.Message
			st.ErrorCategory = f.Category
			return
		}
		st.EditorPrompt = desc
	}, err)
}

// EnhanceEditorPrompt rewrites the editor prompt into a clearer instruction.
func (s *Session) EnhanceEditorPrompt(ctx context.Context) error {
	var (
		t    ticket
		text string
	)
	err := s.update(func(st *State) error {
		if st.Mode != ModeEditor {
			return ErrWrongMode
		}
		if st.Enhancing {
			return ErrBusy
		}
		if strings.TrimSpace(st.EditorPrompt) == "" {
			st.Error = msgEnhanceNeedText
			return invalid(msgEnhanceNeedText)
		}
		st.Error = ""
		st.ErrorCategory = friendlyerr.Unknown
		text = st.EditorPrompt
		t = s.startLocked(taskEnhance)
		return nil
	})
	if err != nil {
		return err
	}

	enhanced, err := s.callText(func() (string, error) { return s.gw.EnhancePrompt(ctx, text) })
	return s.finish(t, func(st *State) {
		if err != nil {
			f := s.translator.Translate(err)
			st.Error = friendlyerr.ScopeEnhance + ": " + f.Message
			st.ErrorCategory = f.Category
			return
		}
		st.EditorPrompt = enhanced
	}, err)
}

// Explain asks the text model what the current prompt will do to the photo.
func (s *Session) Explain(ctx context.Context) (string, error) {
	explainer, ok := s.gw.(gateway.Explainer)
	if !ok {
		return "", gateway.ErrExplainUnsupported
	}

	var (
		t      ticket
		prompt string
	)
	err := s.update(func(st *State) error {
		if st.Explaining {
			return ErrBusy
		}
		prompt = st.Prompt
		if prompt == "" {
			p, err := buildPrompt(*st, s.cat)
			if err != nil {
				return err
			}
			prompt = p
		}
		st.Explanation = ""
		t = s.startLocked(taskExplain)
		return nil
	})
	if err != nil {
		return "", err
	}

	text, err := explainer.Explain(ctx, prompt)
	ferr := s.finish(t, func(st *State) {
		if err != nil {
			st.Explanation = s.translator.Scoped(friendlyerr.ScopeExplain, err)
			return
		}
		st.Explanation = text
	}, err)
	if ferr != nil {
		return "", ferr
	}
	return text, nil
}

func (s *Session) callText(fn func() (string, error)) (string, error) {
	if s.gw == nil {
		return "", errors.New("no text backend configured")
	}
	return fn()
}

// Close stops the countdown. Later calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopCountdownLocked()
}

func (s *Session) startLocked(kind task) ticket {
	s.seq++
	s.running[kind] = s.seq
	s.setBusyLocked(kind, true)
	return ticket{kind: kind, epoch: s.epoch, seq: s.seq}
}

// finish applies a completed call. The busy flag is cleared only when this
// call still owns it, and apply runs only when the epoch is unchanged.
func (s *Session) finish(t ticket, apply func(st *State), callErr error) error {
	s.mu.Lock()
	if s.running[t.kind] == t.seq {
		delete(s.running, t.kind)
		s.setBusyLocked(t.kind, false)
	}
	if s.closed || s.epoch != t.epoch {
		snap := s.state.clone()
		s.mu.Unlock()
		s.publish(snap)
		return ErrStale
	}
	apply(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()

	s.publish(snap)
	return callErr
}

func (s *Session) setBusyLocked(kind task, busy bool) {
	switch kind {
	case taskGender:
		s.state.AnalyzingGender = busy
	case taskGenerate:
		s.state.Generating = busy
	case taskAnalyze:
		s.state.Analyzing = busy
	case taskEnhance:
		s.state.Enhancing = busy
	case taskExplain:
		s.state.Explaining = busy
	}
}
