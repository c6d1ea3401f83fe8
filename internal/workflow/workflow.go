package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"avatarforge/internal/activity"
	"avatarforge/internal/domain"
)

var (
	// ErrNoAvatar is returned when generation is requested before an avatar resolved.
	ErrNoAvatar = errors.New("workflow: no avatar ready")
	// ErrNoArtifact is returned by Save when there is nothing to save.
	ErrNoArtifact = errors.New("workflow: no artifact to save")
)

const (
	defaultFilenamePrefix = "discord_fake_avatar_decorations"
	anonymousUser         = "Unidentified User"
)

// Normalizer turns an avatar source into a square handle.
type Normalizer interface {
	Normalize(ctx context.Context, src domain.AvatarSource) (domain.NormalizedAvatar, error)
}

// Compositor produces the final artifact. It must not panic or return raw engine errors.
type Compositor interface {
	Compose(ctx context.Context, avatar domain.NormalizedAvatar, decoration domain.Decoration) domain.GenerationResult
}

// ArtifactStore is the transient store used to hand oversized artifacts off.
type ArtifactStore interface {
	Put(ctx context.Context, data []byte, ext string) (string, error)
}

// Outcome describes one committed generation.
type Outcome struct {
	SessionID    string
	RequestID    uint64
	DecorationID string
	Category     string
	Animated     bool
	Bytes        int64
	Frames       int
	Duration     time.Duration
	Err          error
}

// Recorder persists generation outcomes. Failures are logged and ignored.
type Recorder interface {
	RecordGeneration(ctx context.Context, o Outcome) error
}

// Options carries the collaborators shared by every workflow.
type Options struct {
	Normalizer     Normalizer
	Compositor     Compositor
	Handoff        ArtifactStore
	Notifier       activity.Notifier
	Recorder       Recorder
	InlineLimit    int64
	FilenamePrefix string
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Workflow is the per-session generation state machine. All transitions go
// through its methods; settles from superseded requests are dropped.
type Workflow struct {
	id   string
	opts Options

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	avatarToken uint64
	genToken    uint64
	requestID   uint64
	avatar      *domain.NormalizedAvatar
	decoration  domain.Decoration
	selection   Selection
	username    string
	artifact    *domain.Artifact
	failure     error
	handoffKey  string
	lastActive  time.Time
}

// New creates a workflow in the Idle state.
func New(id string, opts Options) *Workflow {
	if opts.Notifier == nil {
		opts.Notifier = activity.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = defaultFilenamePrefix
	}
	base, cancel := context.WithCancel(context.Background())
	return &Workflow{
		id:         id,
		opts:       opts,
		base:       base,
		cancel:     cancel,
		state:      Idle,
		decoration: domain.NoDecoration,
		lastActive: opts.Now(),
	}
}

func (w *Workflow) ID() string { return w.id }

// SetAvatarSource starts normalization of src from any state. Any in-flight
// normalization or generation is superseded. It returns the avatar token.
func (w *Workflow) SetAvatarSource(src domain.AvatarSource) uint64 {
	return w.changeAvatar(src, "", "")
}

// SelectPreset highlights presetID and uses assetRef as the avatar source.
func (w *Workflow) SelectPreset(presetID, assetRef string) uint64 {
	return w.changeAvatar(domain.PresetSource(assetRef), presetID, "")
}

// SetIdentity uses a resolved profile's avatar as the source and remembers
// the profile's display name for activity notifications.
func (w *Workflow) SetIdentity(p *domain.DiscordProfile, preferStatic bool) uint64 {
	u := p.AvatarURL
	if preferStatic && p.StaticAvatarURL != nil {
		u = *p.StaticAvatarURL
	}
	return w.changeAvatar(domain.IdentitySource(u), "", p.DisplayName())
}

func (w *Workflow) changeAvatar(src domain.AvatarSource, presetID, username string) uint64 {
	w.mu.Lock()
	w.avatarToken++
	token := w.avatarToken
	w.genToken++
	w.state = AwaitingAvatar
	w.avatar = nil
	w.artifact = nil
	w.failure = nil
	w.handoffKey = ""
	w.selection.PresetID = presetID
	w.username = username
	w.lastActive = w.opts.Now()
	w.mu.Unlock()

	w.wg.Add(1)
	go w.normalize(token, src)
	return token
}

func (w *Workflow) normalize(token uint64, src domain.AvatarSource) {
	defer w.wg.Done()

	var (
		na  domain.NormalizedAvatar
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("workflow: normalizer panic: %v: %w", p, domain.ErrValidation)
			}
		}()
		na, err = w.opts.Normalizer.Normalize(w.base, src)
	}()
	if err == nil && na.Handle == nil {
		err = fmt.Errorf("workflow: normalizer returned no image: %w", domain.ErrValidation)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if token != w.avatarToken {
		w.opts.Logger.Debug().Str("session_id", w.id).Uint64("token", token).Msg("workflow: stale normalization dropped")
		return
	}
	if err != nil {
		w.state = Idle
		w.failure = err
		w.selection.PresetID = ""
		w.opts.Logger.Info().Err(err).Str("session_id", w.id).Str("kind", domain.ErrorKind(err)).Msg("workflow: avatar rejected")
		return
	}
	w.avatar = &na
	w.state = Ready
}

// SelectDecoration records the decoration. With an avatar present the
// workflow re-enters Ready and any in-flight generation is superseded;
// generation itself is never started here.
func (w *Workflow) SelectDecoration(d domain.Decoration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.decoration = d
	if d.IsNone() {
		w.selection.DecorationID = ""
	} else {
		w.selection.DecorationID = d.ID
	}
	w.lastActive = w.opts.Now()
	if w.avatar == nil {
		return
	}
	if w.state == Generating {
		w.genToken++
	}
	w.state = Ready
	w.artifact = nil
	w.failure = nil
	w.handoffKey = ""
}

// Generate issues a new generation request and returns its id. The state
// becomes Generating immediately.
func (w *Workflow) Generate() (uint64, error) {
	w.mu.Lock()
	if w.avatar == nil || !w.state.canGenerate() {
		state := w.state
		w.mu.Unlock()
		return 0, fmt.Errorf("%w (state %s)", ErrNoAvatar, state)
	}
	w.genToken++
	req := domain.GenerationRequest{
		RequestID:  w.genToken,
		Avatar:     *w.avatar,
		Decoration: w.decoration,
	}
	w.requestID = req.RequestID
	w.state = Generating
	w.artifact = nil
	w.failure = nil
	w.handoffKey = ""
	w.lastActive = w.opts.Now()
	w.mu.Unlock()

	w.wg.Add(1)
	go w.generate(req)
	return req.RequestID, nil
}

func (w *Workflow) generate(req domain.GenerationRequest) {
	defer w.wg.Done()

	start := w.opts.Now()
	res := w.opts.Compositor.Compose(w.base, req.Avatar, req.Decoration)
	if !res.OK() && res.Err == nil {
		res = domain.Failure(fmt.Errorf("workflow: empty artifact: %w", domain.ErrComposition))
	}
	elapsed := w.opts.Now().Sub(start)

	w.mu.Lock()
	if req.RequestID != w.genToken {
		w.mu.Unlock()
		w.opts.Logger.Debug().Str("session_id", w.id).Uint64("request_id", req.RequestID).Msg("workflow: stale generation dropped")
		return
	}
	username := w.username
	if res.OK() {
		w.state = Generated
		w.artifact = res.Artifact
	} else {
		w.state = GenerationFailed
		w.failure = res.Err
	}
	w.mu.Unlock()

	outcome := Outcome{
		SessionID:    w.id,
		RequestID:    req.RequestID,
		DecorationID: req.Decoration.ID,
		Category:     req.Decoration.Category,
		Duration:     elapsed,
		Err:          res.Err,
	}
	if res.OK() {
		outcome.Animated = res.Artifact.Animated
		outcome.Bytes = res.Artifact.Size()
		outcome.Frames = res.Artifact.Frames
		if username == "" {
			username = anonymousUser
		}
		w.opts.Notifier.Notify(w.base, activity.Event{
			Kind:       activity.KindImageGeneration,
			Username:   username,
			Collection: req.Decoration.Category,
		})
	}
	if w.opts.Recorder != nil {
		if err := w.opts.Recorder.RecordGeneration(w.base, outcome); err != nil {
			w.opts.Logger.Warn().Err(err).Str("session_id", w.id).Msg("workflow: record generation failed")
		}
	}
}

// SaveResult is the outcome of a save action. Exactly one of Artifact and
// HandoffKey is set.
type SaveResult struct {
	Artifact   *domain.Artifact
	Filename   string
	HandoffKey string
}

// Save hands the artifact to the caller, or to the transient store when it
// exceeds the inline limit, moving the workflow to ArtifactTooLarge.
func (w *Workflow) Save(ctx context.Context) (SaveResult, error) {
	w.mu.Lock()
	w.lastActive = w.opts.Now()
	switch w.state {
	case ArtifactTooLarge:
		key := w.handoffKey
		w.mu.Unlock()
		return SaveResult{HandoffKey: key}, nil
	case Generated:
	default:
		state := w.state
		w.mu.Unlock()
		return SaveResult{}, fmt.Errorf("%w (state %s)", ErrNoArtifact, state)
	}
	art := w.artifact
	token := w.genToken
	limit := w.opts.InlineLimit
	w.mu.Unlock()

	if limit <= 0 || art.Size() <= limit {
		name := fmt.Sprintf("%s_%d.%s", w.opts.FilenamePrefix, w.opts.Now().UnixMilli(), art.Extension())
		return SaveResult{Artifact: art, Filename: name}, nil
	}
	if w.opts.Handoff == nil {
		return SaveResult{}, fmt.Errorf("workflow: artifact of %d bytes exceeds %d and no handoff store: %w", art.Size(), limit, domain.ErrConfig)
	}

	key, err := w.opts.Handoff.Put(ctx, art.Data, art.Extension())
	if err != nil {
		return SaveResult{}, fmt.Errorf("workflow: handoff: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if token != w.genToken {
		return SaveResult{}, fmt.Errorf("%w (superseded)", ErrNoArtifact)
	}
	switch w.state {
	case ArtifactTooLarge:
		// A concurrent save won; the extra copy expires with the handoff ttl.
		return SaveResult{HandoffKey: w.handoffKey}, nil
	case Generated:
	default:
		return SaveResult{}, fmt.Errorf("%w (superseded)", ErrNoArtifact)
	}
	w.state = ArtifactTooLarge
	w.handoffKey = key
	w.failure = fmt.Errorf("workflow: artifact of %d bytes exceeds %d: %w", art.Size(), limit, domain.ErrSizeLimit)
	return SaveResult{HandoffKey: key}, nil
}

// ArtifactInfo summarises the current artifact without its bytes.
type ArtifactInfo struct {
	MIME     string `json:"mime"`
	Bytes    int64  `json:"bytes"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Frames   int    `json:"frames"`
	Animated bool   `json:"animated"`
}

// Snapshot is an immutable view of the workflow.
type Snapshot struct {
	ID             string        `json:"id"`
	State          State         `json:"state"`
	Avatar         AvatarStatus  `json:"avatar"`
	AvatarAnimated bool          `json:"avatarAnimated"`
	Selection      Selection     `json:"selection"`
	RequestID      uint64        `json:"requestId"`
	Failure        string        `json:"failure,omitempty"`
	FailureDetail  string        `json:"failureDetail,omitempty"`
	Artifact       *ArtifactInfo `json:"artifact,omitempty"`
	HandoffKey     string        `json:"handoffKey,omitempty"`
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		ID:        w.id,
		State:     w.state,
		Avatar:    AvatarNone,
		Selection: w.selection,
		RequestID: w.requestID,
	}
	switch {
	case w.state == AwaitingAvatar:
		s.Avatar = AvatarLoading
	case w.avatar != nil:
		s.Avatar = AvatarReady
		s.AvatarAnimated = w.avatar.Animated
	}
	if w.failure != nil {
		s.Failure = domain.ErrorKind(w.failure)
		s.FailureDetail = w.failure.Error()
	}
	if a := w.artifact; a != nil {
		s.Artifact = &ArtifactInfo{
			MIME:     a.MIME,
			Bytes:    a.Size(),
			Width:    a.Width,
			Height:   a.Height,
			Frames:   a.Frames,
			Animated: a.Animated,
		}
	}
	s.HandoffKey = w.handoffKey
	return s
}

// Wait blocks until every launched normalization and generation settled.
func (w *Workflow) Wait() {
	w.wg.Wait()
}

// Close cancels the workflow's context. In-flight calls still settle and are
// dropped if superseded.
func (w *Workflow) Close() {
	w.cancel()
}

// idleSince reports the last time a transition method was called.
func (w *Workflow) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}
