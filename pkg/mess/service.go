package mess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

const (
	// maxUpdateAttempts bounds the retries of a unit of work that lost a
	// version race on a mess.
	maxUpdateAttempts = 3
	// maxCreateAttempts bounds the retries of createMess when a concurrent
	// create claimed the generated code first.
	maxCreateAttempts = 5
)

// Presence reports whether a user has a live realtime connection.
type Presence interface {
	IsUserConnected(userID uuid.UUID) bool
}

// Rooms evicts users from realtime rooms.
type Rooms interface {
	LeaveUser(userID uuid.UUID, room string)
}

// Config holds the collaborators of the membership service.
type Config struct {
	// Publisher receives events after each committed transition. Defaults to NopPublisher.
	Publisher Publisher
	// Presence backs OnlineMembers. When nil nobody is reported online.
	Presence Presence
	// Rooms drops a departing member's connections from the mess room.
	// When nil nobody is evicted.
	Rooms  Rooms
	Logger *slog.Logger
	Now    func() time.Time
}

// Service runs the mess membership state machine. Each operation loads the
// acting user, mutates the mess, cascades to the user and the member
// projection in one unit of work, then publishes events.
type Service struct {
	store    Store
	presence Presence
	rooms    Rooms
	events   *emitter
	logger   *slog.Logger
	now      func() time.Time
	newCode  func(ctx context.Context, exists CodeExistsFunc) (string, error)
}

// NewService creates a new membership service.
func NewService(store Store, cfg Config) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:    store,
		presence: cfg.Presence,
		rooms:    cfg.Rooms,
		events: &emitter{
			publisher: cfg.Publisher,
			logger:    cfg.Logger,
			now:       cfg.Now,
		},
		logger:  cfg.Logger,
		now:     cfg.Now,
		newCode: GenerateIdentifierCode,
	}
}

// atomic runs fn in a unit of work and retries it when another writer
// saved the same mess first.
func (s *Service) atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err = s.store.Atomic(ctx, fn)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		s.logger.Debug("mess changed concurrently, retrying", "attempt", attempt)
	}
	return err
}

// CreateMessInput is the input of CreateMess.
type CreateMessInput struct {
	Name    string
	Address string
}

// CreateMess creates a mess administered by the acting user.
func (s *Service) CreateMess(ctx context.Context, actorID uuid.UUID, in CreateMessInput) (*domain.MessSummary, error) {
	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	if name == "" || address == "" {
		return nil, domain.Invalid("name and address are required")
	}

	var created *domain.Mess
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		err = s.atomic(ctx, func(ctx context.Context, tx Tx) error {
			actor, err := tx.Users().GetForUpdate(ctx, actorID)
			if err != nil {
				return err
			}
			if actor.InMess() {
				return domain.ErrAlreadyInMess
			}

			code, err := s.newCode(ctx, tx.Messes().CodeExists)
			if err != nil {
				return fmt.Errorf("generate identifier code: %w", err)
			}

			now := s.now()
			mess := domain.NewMess(name, address, code, actor.ID, now)
			if err := tx.Messes().Create(ctx, mess); err != nil {
				return err
			}

			actor.EnterMess(mess.ID, true)
			if err := tx.Users().UpdateMessState(ctx, actor); err != nil {
				return err
			}
			if err := syncMember(ctx, tx, actor, mess.ID, true, now); err != nil {
				return err
			}

			created = mess
			return nil
		})
		if !errors.Is(err, domain.ErrIdentifierCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("mess created", "mess_id", created.ID, "user_id", actorID, "identifier_code", created.IdentifierCode)

	summary := created.Summary()
	s.events.messUpdate(created.ID, UpdateMessCreated, summary)
	return summary, nil
}

// SearchMess finds an active mess by identifier code.
func (s *Service) SearchMess(ctx context.Context, code string) (*MessWithAdmin, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Invalid("identifier code is required")
	}

	var found *MessWithAdmin
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		mess, err := tx.Messes().GetByCode(ctx, code)
		if err != nil {
			return err
		}
		admin, err := tx.Users().GetByID(ctx, mess.AdminID)
		if err != nil {
			return fmt.Errorf("load mess admin: %w", err)
		}
		m := withAdmin(mess, admin)
		found = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// RequestToJoin files a pending join request from the acting user.
func (s *Service) RequestToJoin(ctx context.Context, actorID, messID uuid.UUID) (*JoinRequestResult, error) {
	var result *JoinRequestResult
	var requester *domain.User
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.InMess() {
			return domain.ErrAlreadyInMess
		}

		mess, err := tx.Messes().GetForUpdate(ctx, messID)
		if err != nil {
			return err
		}
		if !mess.IsActive {
			return domain.ErrMessNotFound
		}

		req, err := mess.RequestToJoin(actor.ID, s.now())
		if err != nil {
			return err
		}
		if err := tx.Messes().Update(ctx, mess); err != nil {
			return err
		}

		requester = actor
		result = &JoinRequestResult{
			RequestID:   req.ID,
			RequestedAt: req.RequestedAt,
			Status:      StatusPending,
			Mess:        mess.Summary(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("join request created", "mess_id", messID, "user_id", actorID, "request_id", result.RequestID)

	s.events.messUpdate(messID, UpdateNewJoinRequest, PendingRequest{
		ID:          result.RequestID,
		User:        requester.Summary(),
		RequestedAt: result.RequestedAt,
		Status:      domain.RequestStatusPending,
	})
	s.events.joinRequestUpdate(actorID, StatusPending, result.Mess)
	return result, nil
}

// ListPendingRequests returns the pending requests of the admin's mess, oldest first.
func (s *Service) ListPendingRequests(ctx context.Context, adminID uuid.UUID) ([]PendingRequest, error) {
	var list []PendingRequest
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		mess, err := loadAdminMess(ctx, tx, adminID, false)
		if err != nil {
			return err
		}

		pending := mess.PendingRequests()
		ids := make([]uuid.UUID, 0, len(pending))
		for _, req := range pending {
			ids = append(ids, req.UserID)
		}
		users, err := tx.Users().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := indexUsers(users)

		list = make([]PendingRequest, 0, len(pending))
		for _, req := range pending {
			user, ok := byID[req.UserID]
			if !ok {
				continue
			}
			list = append(list, PendingRequest{
				ID:          req.ID,
				User:        user.Summary(),
				RequestedAt: req.RequestedAt,
				Status:      req.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AcceptRequest approves a pending request and makes its user a member.
func (s *Service) AcceptRequest(ctx context.Context, adminID, requestID uuid.UUID) (*domain.UserSummary, error) {
	var accepted *domain.User
	var summary *domain.MessSummary
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		mess, err := loadAdminMess(ctx, tx, adminID, true)
		if err != nil {
			return err
		}

		now := s.now()
		req, err := mess.Approve(requestID, now)
		if err != nil {
			return err
		}

		requester, err := tx.Users().GetForUpdate(ctx, req.UserID)
		if err != nil {
			return err
		}
		// The requester may have joined another mess while waiting.
		if requester.InMess() {
			return domain.ErrAlreadyInMess
		}

		if err := tx.Messes().Update(ctx, mess); err != nil {
			return err
		}
		requester.EnterMess(mess.ID, false)
		if err := tx.Users().UpdateMessState(ctx, requester); err != nil {
			return err
		}
		if err := syncMember(ctx, tx, requester, mess.ID, true, now); err != nil {
			return err
		}

		accepted = requester
		summary = mess.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("join request accepted", "mess_id", summary.ID, "user_id", accepted.ID, "request_id", requestID)

	user := accepted.Summary()
	s.events.joinRequestUpdate(accepted.ID, StatusAccepted, summary)
	s.events.messUpdate(summary.ID, UpdateMemberJoined, user)
	return &user, nil
}

// RejectRequest rejects a pending request. Membership is not touched.
func (s *Service) RejectRequest(ctx context.Context, adminID, requestID uuid.UUID) error {
	var rejected domain.JoinRequest
	var summary *domain.MessSummary
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		mess, err := loadAdminMess(ctx, tx, adminID, true)
		if err != nil {
			return err
		}

		req, err := mess.Reject(requestID)
		if err != nil {
			return err
		}
		if err := tx.Messes().Update(ctx, mess); err != nil {
			return err
		}

		rejected = req
		summary = mess.Summary()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("join request rejected", "mess_id", summary.ID, "user_id", rejected.UserID, "request_id", requestID)

	s.events.joinRequestUpdate(rejected.UserID, StatusRejected, summary)
	return nil
}

// CancelRequest withdraws the acting user's pending request.
func (s *Service) CancelRequest(ctx context.Context, actorID uuid.UUID) error {
	var cancelled domain.JoinRequest
	var summary *domain.MessSummary
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.InMess() {
			return domain.ErrAlreadyInMess
		}

		found, err := tx.Messes().FindWithPendingRequestFrom(ctx, actorID)
		if err != nil {
			return err
		}
		mess, err := tx.Messes().GetForUpdate(ctx, found.ID)
		if err != nil {
			return err
		}

		req, err := mess.CancelRequest(actorID)
		if err != nil {
			return err
		}
		if err := tx.Messes().Update(ctx, mess); err != nil {
			return err
		}

		cancelled = req
		summary = mess.Summary()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("join request cancelled", "mess_id", summary.ID, "user_id", actorID, "request_id", cancelled.ID)

	s.events.joinRequestUpdate(actorID, StatusCancelled, summary)
	s.events.messUpdate(summary.ID, UpdateRequestCancelled, CancelledRequest{
		RequestID: cancelled.ID,
		UserID:    actorID,
	})
	return nil
}

// CheckRequestStatus derives the acting user's membership status: accepted
// when in a mess, then pending, then rejected, else none.
func (s *Service) CheckRequestStatus(ctx context.Context, actorID uuid.UUID) (*RequestStatus, error) {
	var status *RequestStatus
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}

		if actor.InMess() {
			mess, err := tx.Messes().GetByID(ctx, *actor.CurrentMessID)
			if err != nil {
				return err
			}
			status = &RequestStatus{Status: StatusAccepted, Mess: mess.Summary()}
			return nil
		}

		mess, err := tx.Messes().FindWithPendingRequestFrom(ctx, actorID)
		switch {
		case err == nil:
			status = &RequestStatus{Status: StatusPending, Mess: mess.Summary()}
			return nil
		case !errors.Is(err, domain.ErrNoPendingRequest):
			return err
		}

		mess, err = tx.Messes().FindWithRejectedRequestFrom(ctx, actorID)
		switch {
		case err == nil:
			status = &RequestStatus{Status: StatusRejected, Mess: mess.Summary()}
		case errors.Is(err, domain.ErrMessNotFound):
			status = &RequestStatus{Status: StatusNone}
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// LeaveMess deactivates the acting user's membership. Admins cannot leave.
func (s *Service) LeaveMess(ctx context.Context, actorID uuid.UUID) error {
	var left *domain.User
	var messID uuid.UUID
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.InMess() {
			return domain.ErrNotInMess
		}
		id := *actor.CurrentMessID

		mess, err := tx.Messes().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Re-read under lock; the pointer may have moved since the first read.
		actor, err = tx.Users().GetForUpdate(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.InMess() || *actor.CurrentMessID != id {
			return domain.ErrConcurrentUpdate
		}
		if actor.IsMessAdmin || mess.IsAdmin(actor.ID) {
			return domain.ErrAdminCannotLeave
		}

		if mess.Deactivate(actor.ID) {
			if err := tx.Messes().Update(ctx, mess); err != nil {
				return err
			}
		}
		if err := exitMess(ctx, tx, actor, mess.ID, s.now()); err != nil {
			return err
		}

		left = actor
		messID = mess.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("member left mess", "mess_id", messID, "user_id", actorID)

	s.evict(actorID, messID)
	s.events.messUpdate(messID, UpdateMemberLeft, left.Summary())
	return nil
}

// RemoveMember deactivates another member of the admin's mess.
func (s *Service) RemoveMember(ctx context.Context, adminID, memberID uuid.UUID) error {
	var removed *domain.User
	var summary *domain.MessSummary
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		mess, err := loadAdminMess(ctx, tx, adminID, true)
		if err != nil {
			return err
		}
		if mess.IsAdmin(memberID) {
			return domain.ErrCannotRemoveAdmin
		}
		if !mess.Deactivate(memberID) {
			return domain.ErrMemberNotFound
		}

		member, err := tx.Users().GetForUpdate(ctx, memberID)
		if err != nil {
			return err
		}
		if err := tx.Messes().Update(ctx, mess); err != nil {
			return err
		}
		if err := exitMess(ctx, tx, member, mess.ID, s.now()); err != nil {
			return err
		}

		removed = member
		summary = mess.Summary()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("member removed from mess", "mess_id", summary.ID, "user_id", memberID, "admin_id", adminID)

	s.evict(memberID, summary.ID)
	s.events.messUpdate(summary.ID, UpdateMemberRemoved, removed.Summary())
	s.events.joinRequestUpdate(memberID, StatusRemoved, summary)
	return nil
}

// GetMessDetails returns the acting user's mess with its active members.
func (s *Service) GetMessDetails(ctx context.Context, actorID uuid.UUID) (*MessDetails, error) {
	var details *MessDetails
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.InMess() {
			return domain.ErrNotInMess
		}

		mess, err := tx.Messes().GetByID(ctx, *actor.CurrentMessID)
		if err != nil {
			return err
		}

		active := mess.ActiveMembers()
		ids := make([]uuid.UUID, 0, len(active)+1)
		ids = append(ids, mess.AdminID)
		for _, m := range active {
			ids = append(ids, m.UserID)
		}
		users, err := tx.Users().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := indexUsers(users)

		admin, ok := byID[mess.AdminID]
		if !ok {
			return fmt.Errorf("mess %s: admin %s: %w", mess.ID, mess.AdminID, domain.ErrUserNotFound)
		}

		members := make([]MemberDetails, 0, len(active))
		for _, m := range active {
			user, ok := byID[m.UserID]
			if !ok {
				continue
			}
			members = append(members, MemberDetails{
				User:     user.Summary(),
				JoinedAt: m.JoinedAt,
				IsActive: m.IsActive,
			})
		}

		details = &MessDetails{
			MessWithAdmin: withAdmin(mess, admin),
			Members:       members,
			MemberCount:   len(members),
			CreatedAt:     mess.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// OnlineMembers returns the active members of the acting user's mess that
// hold a live realtime connection.
func (s *Service) OnlineMembers(ctx context.Context, actorID uuid.UUID) ([]domain.UserSummary, error) {
	details, err := s.GetMessDetails(ctx, actorID)
	if err != nil {
		return nil, err
	}

	online := make([]domain.UserSummary, 0, len(details.Members))
	if s.presence == nil {
		return online, nil
	}
	for _, m := range details.Members {
		if s.presence.IsUserConnected(m.User.ID) {
			online = append(online, m.User)
		}
	}
	return online, nil
}

// evict drops userID's connections from the mess room so a former member
// stops receiving its updates.
func (s *Service) evict(userID, messID uuid.UUID) {
	if s.rooms != nil {
		s.rooms.LeaveUser(userID, MessRoom(messID))
	}
}

// loadAdminMess loads the mess administered by adminID, locked for the rest
// of the unit of work when forUpdate is set.
func loadAdminMess(ctx context.Context, tx Tx, adminID uuid.UUID, forUpdate bool) (*domain.Mess, error) {
	admin, err := tx.Users().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.InMess() || !admin.IsMessAdmin {
		return nil, domain.ErrMessAdminRequired
	}

	get := tx.Messes().GetByID
	if forUpdate {
		get = tx.Messes().GetForUpdate
	}
	mess, err := get(ctx, *admin.CurrentMessID)
	if err != nil {
		return nil, err
	}
	if !mess.IsAdmin(admin.ID) {
		return nil, domain.ErrMessAdminRequired
	}
	return mess, nil
}

// exitMess clears the user's mess pointer when it still targets messID and
// marks the projection inactive.
func exitMess(ctx context.Context, tx Tx, user *domain.User, messID uuid.UUID, now time.Time) error {
	if user.CurrentMessID != nil && *user.CurrentMessID == messID {
		user.ExitMess()
		if err := tx.Users().UpdateMessState(ctx, user); err != nil {
			return err
		}
	}
	return syncMember(ctx, tx, user, messID, false, now)
}

// syncMember upserts the member projection of (user, messID). A missing
// record is only created for activation.
func syncMember(ctx context.Context, tx Tx, user *domain.User, messID uuid.UUID, active bool, now time.Time) error {
	rec, err := tx.Members().GetByUserAndMess(ctx, user.ID, messID)
	switch {
	case errors.Is(err, domain.ErrMemberRecordNotFound):
		if !active {
			return nil
		}
		rec = domain.NewMember(user.ID, messID, user.FullName, now)
	case err != nil:
		return err
	default:
		rec.IsActive = active
		if active {
			rec.Name = user.FullName
		}
		rec.UpdatedAt = now
	}
	return tx.Members().Upsert(ctx, rec)
}

func withAdmin(mess *domain.Mess, admin *domain.User) MessWithAdmin {
	return MessWithAdmin{
		ID:             mess.ID,
		Name:           mess.Name,
		Address:        mess.Address,
		IdentifierCode: mess.IdentifierCode,
		Admin:          admin.Summary(),
	}
}

func indexUsers(users []*domain.User) map[uuid.UUID]*domain.User {
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID
}
