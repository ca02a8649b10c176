package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ideashare/api/internal/blob"
	"ideashare/api/internal/ideas"
	"ideashare/api/internal/metrics"
	"ideashare/api/internal/search"
	"ideashare/api/internal/store"
	"ideashare/api/internal/util"
	"ideashare/api/internal/validate"
)

// ItemStore is the durable idea store.
type ItemStore interface {
	Insert(ctx context.Context, idea ideas.Idea) (string, error)
	GetByID(ctx context.Context, id string) (ideas.Idea, error)
	List(ctx context.Context, filter ideas.Filter) ([]ideas.Idea, error)
	Update(ctx context.Context, id string, patch store.Patch) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// BlobStorage holds audio. Remove is best-effort from the service's view.
type BlobStorage interface {
	Put(ctx context.Context, obj blob.Object) (string, error)
	Remove(ctx context.Context, ref string) error
	URLFor(ctx context.Context, ref string) (string, error)
}

// Ledger is one voter's durable record of ideas already voted on.
type Ledger interface {
	Has(ctx context.Context, ideaID string) (bool, error)
	Add(ctx context.Context, ideaID string) error
}

// VoterLedger is a Ledger that can also list its entries.
type VoterLedger interface {
	Ledger
	Members(ctx context.Context) ([]string, error)
}

// LedgerSource returns the ledger of one voter device.
type LedgerSource func(voterID string) VoterLedger

// SearchIndex is the search facade; search.Service implements it.
type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexIdea(r search.IdeaRecord)
	DeleteIdea(id string)
}

type Options struct {
	Search  SearchIndex
	Metrics *metrics.IdeasMetrics
	Logger  *slog.Logger
	// Now is the clock every visibility decision uses. Defaults to time.Now.
	Now func() time.Time
	// BootstrapTasks run concurrently from Bootstrap.
	BootstrapTasks []func(context.Context) error
}

type Service struct {
	store          ItemStore
	blobs          BlobStorage
	ledgers        LedgerSource
	search         SearchIndex
	metrics        *metrics.IdeasMetrics
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
	cleanupTimeout time.Duration
	bootstrap      []func(context.Context) error
}

func New(itemStore ItemStore, blobs BlobStorage, ledgers LedgerSource, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:          itemStore,
		blobs:          blobs,
		ledgers:        ledgers,
		search:         opts.Search,
		metrics:        opts.Metrics,
		logger:         logger,
		now:            now,
		newID:          func() string { return util.NewID("") },
		cleanupTimeout: 10 * time.Second,
		bootstrap:      opts.BootstrapTasks,
	}
}

// Bootstrap runs the configured startup tasks (bucket creation, search
// reindex) concurrently and returns the first failure.
func (s *Service) Bootstrap(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, task := range s.bootstrap {
		task := task
		group.Go(func() error {
			return task(ctx)
		})
	}
	return group.Wait()
}

// Ping checks the health of the item store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Now() time.Time {
	return s.now()
}

type CreateInput struct {
	OwnerID        string
	Audio          validate.FileMetadata
	Body           io.Reader
	Description    string
	BPM            string
	EmbargoSeconds int64
}

// Create validates the upload, stores the audio and then the record. If
// the record cannot be stored the audio just written is removed again.
func (s *Service) Create(ctx context.Context, input CreateInput) (ideas.Idea, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return ideas.Idea{}, ErrOwnerRequired
	}
	if err := validate.AudioFile(input.Audio); err != nil {
		return ideas.Idea{}, err
	}
	bpm, err := validate.BPM(input.BPM)
	if err != nil {
		return ideas.Idea{}, err
	}
	now := s.now()
	mode, err := ideas.ModeFor(input.EmbargoSeconds, now)
	if err != nil {
		return ideas.Idea{}, withCause(ErrInvalidEmbargo, err)
	}

	ref, err := s.blobs.Put(ctx, blob.Object{
		OwnerID:     ownerID,
		Filename:    input.Audio.Filename,
		ContentType: input.Audio.MimeType,
		Size:        input.Audio.SizeBytes,
		Body:        input.Body,
	})
	if err != nil {
		return ideas.Idea{}, withCause(ErrStorage, err)
	}

	idea := ideas.Idea{
		ID:               s.newID(),
		OwnerID:          &ownerID,
		AudioRef:         ref,
		OriginalFilename: input.Audio.Filename,
		Description:      optionalText(input.Description),
		BPM:              bpm,
		Mode:             mode,
		EmbargoSeconds:   input.EmbargoSeconds,
		CreatedAt:        now,
	}
	if _, err := s.store.Insert(ctx, idea); err != nil {
		s.compensateCreate(ctx, ref, err)
		return ideas.Idea{}, withCause(ErrStore, err)
	}

	s.metrics.IncCreated()
	if s.search != nil {
		s.search.IndexIdea(search.RecordFor(idea))
	}
	s.logger.Info("idea created", "idea_id", idea.ID, "owner_id", ownerID, "visibility", idea.Mode.String())
	return idea, nil
}

// compensateCreate removes an orphaned blob. It runs even when the request
// context is already cancelled.
func (s *Service) compensateCreate(ctx context.Context, ref string, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()
	err := s.blobs.Remove(cleanupCtx, ref)
	s.metrics.ObserveCompensation(err)
	if err != nil {
		s.logger.Warn("orphaned audio after failed insert", "audio_ref", ref, "insert_error", cause, "error", err)
		return
	}
	s.logger.Info("removed audio after failed insert", "audio_ref", ref, "insert_error", cause)
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) load(ctx context.Context, id string) (ideas.Idea, error) {
	idea, err := s.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ideas.Idea{}, ErrIdeaNotFound
	}
	if err != nil {
		return ideas.Idea{}, withCause(ErrStore, err)
	}
	return idea, nil
}

// Release removes the owner link from a public idea. The idea stays in the
// public pool and leaves the owner's list.
func (s *Service) Release(ctx context.Context, id, requestedBy string) (ideas.Idea, error) {
	idea, err := s.load(ctx, id)
	if err != nil {
		return ideas.Idea{}, err
	}
	if !idea.OwnedBy(requestedBy) {
		return ideas.Idea{}, ErrNotOwner
	}
	if ideas.EffectiveVisibility(idea, s.now()) != ideas.Public {
		return ideas.Idea{}, ErrNotYetPublic
	}

	if err := s.store.Update(ctx, id, store.Patch{ClearOwner: true}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ideas.Idea{}, ErrIdeaNotFound
		}
		return ideas.Idea{}, withCause(ErrStore, err)
	}
	idea.OwnerID = nil
	s.metrics.IncReleased()
	s.logger.Info("idea released", "idea_id", id, "owner_id", requestedBy)
	return idea, nil
}

// DeletePrivate permanently deletes a still-private idea. Audio removal is
// best-effort; the record is deleted even when it fails.
func (s *Service) DeletePrivate(ctx context.Context, id, requestedBy string) error {
	idea, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !idea.OwnedBy(requestedBy) {
		return ErrNotOwner
	}
	if ideas.EffectiveVisibility(idea, s.now()) != ideas.Private {
		return ErrAlreadyPublic
	}

	if err := s.blobs.Remove(ctx, idea.AudioRef); err != nil {
		s.metrics.IncBlobRemoveFailure()
		s.logger.Warn("remove audio of deleted idea", "idea_id", id, "audio_ref", idea.AudioRef, "error", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIdeaNotFound
		}
		return withCause(ErrStore, err)
	}

	if s.search != nil {
		s.search.DeleteIdea(id)
	}
	s.metrics.IncDeleted()
	s.logger.Info("private idea deleted", "idea_id", id, "owner_id", requestedBy)
	return nil
}

// CastVote adds one vote for ideaID from the voter behind ledger. board is
// the listing the caller displays; it is updated optimistically and rolled
// back on failure. A repeated vote returns ErrAlreadyVoted before anything
// else is touched.
func (s *Service) CastVote(ctx context.Context, board *ideas.Board, ledger Ledger, ideaID string) (int, error) {
	if err := s.checkLedger(ctx, ledger, ideaID); err != nil {
		return 0, err
	}
	return s.commitVote(ctx, board, ledger, ideaID)
}

// VoteByID is CastVote for callers without a listing: the idea is loaded
// after the ledger check and must be public.
func (s *Service) VoteByID(ctx context.Context, voterID, ideaID string) (int, error) {
	ledger := s.ledgers(voterID)
	if err := s.checkLedger(ctx, ledger, ideaID); err != nil {
		return 0, err
	}
	idea, err := s.store.GetByID(ctx, ideaID)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.ObserveVote(metrics.VoteIdeaGone)
		return 0, ErrIdeaGone
	}
	if err != nil {
		s.metrics.ObserveVote(metrics.VoteFailed)
		return 0, withCause(ErrVoteFailed, err)
	}
	if ideas.EffectiveVisibility(idea, s.now()) != ideas.Public {
		return 0, ErrNotYetPublic
	}
	return s.commitVote(ctx, ideas.NewBoard([]ideas.Idea{idea}, nil), ledger, ideaID)
}

func (s *Service) checkLedger(ctx context.Context, ledger Ledger, ideaID string) error {
	voted, err := ledger.Has(ctx, ideaID)
	if err != nil {
		s.metrics.ObserveVote(metrics.VoteFailed)
		return withCause(ErrVoteFailed, err)
	}
	if voted {
		s.metrics.ObserveVote(metrics.VoteAlreadyVoted)
		return ErrAlreadyVoted
	}
	return nil
}

// commitVote writes count+1 over the stored counter. Concurrent voters that
// read the same count overwrite each other; only the same voter is
// deduplicated, by the ledger.
func (s *Service) commitVote(ctx context.Context, board *ideas.Board, ledger Ledger, ideaID string) (int, error) {
	idea, ok := board.Get(ideaID)
	if !ok {
		return 0, ErrIdeaNotFound
	}
	proposed := idea.VoteCount + 1
	previous, _ := board.SetVoteCount(ideaID, proposed)

	err := s.store.Update(ctx, ideaID, store.Patch{VoteCount: &proposed})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		board.Remove(ideaID)
		s.metrics.ObserveVote(metrics.VoteIdeaGone)
		return 0, ErrIdeaGone
	default:
		board.SetVoteCount(ideaID, previous)
		s.metrics.ObserveVote(metrics.VoteFailed)
		return 0, withCause(ErrVoteFailed, err)
	}

	// The vote is committed; the append must survive a caller that went away.
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()
	if err := ledger.Add(appendCtx, ideaID); err != nil {
		s.metrics.IncLedgerAppendError()
		s.logger.Warn("vote committed but ledger append failed", "idea_id", ideaID, "error", err)
	}
	s.metrics.ObserveVote(metrics.VoteAccepted)
	return proposed, nil
}

// Voted lists the ideas a voter device has already voted on.
func (s *Service) Voted(ctx context.Context, voterID string) ([]string, error) {
	ids, err := s.ledgers(voterID).Members(ctx)
	if err != nil {
		return nil, withCause(ErrStore, err)
	}
	return ids, nil
}

// ListPublic returns the public pool as of now in display order.
func (s *Service) ListPublic(ctx context.Context) ([]ideas.Idea, error) {
	items, err := s.store.List(ctx, ideas.PublicFilter(s.now()))
	if err != nil {
		return nil, withCause(ErrStore, err)
	}
	return ideas.SortForDisplay(items), nil
}

// PublicBoard returns the public pool as a listing CastVote can update.
func (s *Service) PublicBoard(ctx context.Context) (*ideas.Board, error) {
	items, err := s.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	return ideas.NewBoard(items, ideas.SortForDisplay), nil
}

// ListOwned returns the ideas ownerID still owns, newest first. Released
// ideas are not included.
func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]ideas.Idea, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	items, err := s.store.List(ctx, ideas.OwnerFilter(ownerID))
	if err != nil {
		return nil, withCause(ErrStore, err)
	}
	return ideas.FilterOwnedBy(items, ownerID), nil
}

// Search looks up public ideas by filename and description.
func (s *Service) Search(ctx context.Context, text string, limit, offset int) search.Response {
	text = strings.TrimSpace(text)
	if s.search == nil || text == "" {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(ctx, search.Query{Text: text, AsOf: s.now(), Limit: limit, Offset: offset})
}
