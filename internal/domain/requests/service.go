package requests

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hrsched/internal/domain/auth"
	"hrsched/internal/platform/validation"
)

// Invalidator drops cached aggregates after a request write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type DecisionRecorder interface {
	RecordDecision(requestType, status string)
}

type Service struct {
	store   StoreAPI
	Policy  Policy
	Now     func() time.Time
	Cache   Invalidator
	Metrics DecisionRecorder
}

func NewService(store StoreAPI, policy Policy) *Service {
	return &Service{store: store, Policy: policy, Now: time.Now}
}

func (s *Service) loadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.RequestRows(gctx, id)
		snap.Requests = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.store.TimeOffRows(gctx, id)
		snap.TimeOff = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.store.EarlyDepartureRows(gctx, id)
		snap.EarlyDepartures = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.store.LatenessRows(gctx, id)
		snap.Lateness = rows
		return err
	})
	g.Go(func() error {
		refs, err := s.store.EmployeeRefs(gctx)
		snap.Employees = refs
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// UnifiedView merges the request tables, filters and sorts newest first.
func (s *Service) UnifiedView(ctx context.Context, filter Filter) ([]Request, error) {
	snap, err := s.loadSnapshot(ctx, filter.ID)
	if err != nil {
		return nil, err
	}
	items := filter.Apply(Merge(snap))
	SortNewestFirst(items)
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	items, err := s.UnifiedView(ctx, Filter{ID: id})
	if err != nil {
		return Request{}, err
	}
	if len(items) == 0 {
		return Request{}, ErrNotFound
	}
	return items[0], nil
}

// ScopeFor resolves what an actor may see: admins everything, leaders their
// groups plus themselves, everyone else only their own requests.
func (s *Service) ScopeFor(ctx context.Context, actor auth.UserContext) (Scope, error) {
	if actor.IsAdmin() {
		return Scope{All: true}, nil
	}
	scope := Scope{EmployeeID: actor.EmployeeID}
	if actor.RoleName == auth.RoleLeader && actor.EmployeeID != "" {
		groups, err := s.store.LedGroupIDs(ctx, actor.EmployeeID)
		if err != nil {
			return Scope{}, err
		}
		scope.GroupIDs = groups
	}
	return scope, nil
}

func (s *Service) List(ctx context.Context, actor auth.UserContext, filter Filter, limit, offset int) (ListResult, error) {
	scope, err := s.ScopeFor(ctx, actor)
	if err != nil {
		return ListResult{}, err
	}
	items, err := s.UnifiedView(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	items = scope.Apply(items)
	total := len(items)
	if offset >= total {
		return ListResult{Requests: []Request{}, Total: total}, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return ListResult{Requests: items[offset:end], Total: total}, nil
}

// CanView reports whether actor may read req.
func (s *Service) CanView(ctx context.Context, actor auth.UserContext, req Request) (bool, error) {
	scope, err := s.ScopeFor(ctx, actor)
	if err != nil {
		return false, err
	}
	return scope.Allows(req), nil
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in Input) (CreateResult, error) {
	if in.EmployeeID == "" {
		in.EmployeeID = actor.EmployeeID
	}
	draft, err := in.Draft()
	if err != nil {
		return CreateResult{}, err
	}
	if draft.EmployeeID == "" {
		verr := &validation.Error{}
		verr.Add("employeeId", "is required")
		return CreateResult{}, verr.OrNil()
	}

	employee, err := s.store.Employee(ctx, draft.EmployeeID)
	if errors.Is(err, ErrNotFound) || (err == nil && !employee.Active) {
		verr := &validation.Error{}
		verr.Add("employeeId", "must be an active employee")
		return CreateResult{}, verr.OrNil()
	}
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.authorizeOnBehalf(ctx, actor, employee); err != nil {
		return CreateResult{}, err
	}
	if err := s.checkDraft(ctx, draft, employee); err != nil {
		return CreateResult{}, err
	}

	now := s.Now()
	req := Request{
		ID:           uuid.NewString(),
		Type:         draft.Type,
		Status:       StatusPending,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		FactoryID:    employee.FactoryID,
		GroupID:      employee.GroupID,
		StartDate:    draft.StartDate,
		EndDate:      draft.EndDate,
		Time:         draft.Time,
		Reason:       draft.Reason,
		SubstituteID: draft.SubstituteID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Source:       SourceRequests,
	}
	if err := s.store.Insert(ctx, req); err != nil {
		return CreateResult{}, err
	}
	s.invalidate(ctx)

	result := CreateResult{Request: req}
	if employee.GroupID != "" {
		leaders, err := s.store.GroupLeaders(ctx, employee.GroupID)
		if err != nil {
			slog.Warn("request leaders lookup failed", "requestId", req.ID, "err", err)
		}
		for _, id := range leaders.UserIDs() {
			if id != employee.UserID {
				result.LeaderUserIDs = append(result.LeaderUserIDs, id)
			}
		}
	}
	return result, nil
}

// authorizeOnBehalf lets admins file for anyone and leaders for members of
// the groups they lead. Everyone else may only file for themselves.
func (s *Service) authorizeOnBehalf(ctx context.Context, actor auth.UserContext, employee EmployeeRef) error {
	if actor.IsAdmin() || employee.ID == actor.EmployeeID {
		return nil
	}
	if actor.RoleName != auth.RoleLeader || actor.EmployeeID == "" || employee.GroupID == "" {
		return ErrForbidden
	}
	groups, err := s.store.LedGroupIDs(ctx, actor.EmployeeID)
	if err != nil {
		return err
	}
	if !slices.Contains(groups, employee.GroupID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) checkDraft(ctx context.Context, draft Draft, employee EmployeeRef) error {
	if err := CheckDates(draft); err != nil {
		return err
	}
	if err := s.Policy.CheckNotice(draft, s.Now()); err != nil {
		return err
	}
	if err := s.Policy.CheckMorningShift(draft, employee.Shift); err != nil {
		return err
	}
	if draft.SubstituteID != "" {
		substitute, err := s.store.Employee(ctx, draft.SubstituteID)
		if errors.Is(err, ErrNotFound) {
			return policyErr(CodeInvalidSubstitute, "substitute does not exist")
		}
		if err != nil {
			return err
		}
		if err := CheckSubstitute(employee, substitute); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a JSON merge patch to a pending request. Only the requester
// and admins may edit, and the result is validated like a new request.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, patch []byte) (Request, Request, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, Request{}, err
	}
	if !actor.IsAdmin() && current.EmployeeID != actor.EmployeeID {
		return Request{}, Request{}, ErrForbidden
	}
	if !current.Pending() {
		return Request{}, Request{}, ErrInvalidState
	}

	in, err := ApplyPatch(current, patch)
	if err != nil {
		return Request{}, Request{}, err
	}
	draft, err := in.Draft()
	if err != nil {
		return Request{}, Request{}, err
	}
	employee, err := s.store.Employee(ctx, current.EmployeeID)
	if err != nil {
		return Request{}, Request{}, err
	}
	if err := s.checkDraft(ctx, draft, employee); err != nil {
		return Request{}, Request{}, err
	}

	updated := current
	updated.StartDate = draft.StartDate
	updated.EndDate = draft.EndDate
	updated.Time = draft.Time
	updated.Reason = draft.Reason
	updated.SubstituteID = draft.SubstituteID
	updated.UpdatedAt = s.Now()
	if err := s.store.Update(ctx, updated); err != nil {
		return Request{}, Request{}, err
	}
	s.invalidate(ctx)
	return current, updated, nil
}

func (s *Service) Approve(ctx context.Context, actor auth.UserContext, id, note string) (DecisionResult, error) {
	return s.decide(ctx, actor, id, StatusApproved, note)
}

func (s *Service) Reject(ctx context.Context, actor auth.UserContext, id, note string) (DecisionResult, error) {
	return s.decide(ctx, actor, id, StatusRejected, note)
}

func (s *Service) decide(ctx context.Context, actor auth.UserContext, id, status, note string) (DecisionResult, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := s.authorizeDecision(ctx, actor, current); err != nil {
		return DecisionResult{}, err
	}
	if !current.Pending() {
		return DecisionResult{}, ErrInvalidState
	}

	if status == StatusApproved && current.CountsTowardDailyLimit() {
		limit, err := s.dailyLimit(ctx, current.FactoryID)
		if err != nil {
			return DecisionResult{}, err
		}
		if limit > 0 {
			approved, err := s.UnifiedView(ctx, Filter{
				FactoryID: current.FactoryID,
				Status:    StatusApproved,
				From:      current.StartDate,
				To:        current.EndDate,
			})
			if err != nil {
				return DecisionResult{}, err
			}
			if err := CheckDailyLimit(current, approved, limit); err != nil {
				return DecisionResult{}, err
			}
		}
	}

	now := s.Now()
	if err := s.store.Decide(ctx, id, status, actor.UserID, note, now); err != nil {
		return DecisionResult{}, err
	}
	s.invalidate(ctx)
	if s.Metrics != nil {
		s.Metrics.RecordDecision(current.Type, status)
	}

	decided := current
	decided.Status = status
	decided.DecidedBy = actor.UserID
	decided.DecidedAt = &now
	decided.DecisionNote = note
	decided.UpdatedAt = now

	result := DecisionResult{Request: decided, Before: current}
	if requester, err := s.store.Employee(ctx, current.EmployeeID); err == nil {
		result.RequesterUserID = requester.UserID
	} else {
		slog.Warn("request requester lookup failed", "requestId", id, "err", err)
	}
	return result, nil
}

// authorizeDecision allows admins and the leaders of the requester's group.
// Leaders cannot decide their own requests.
func (s *Service) authorizeDecision(ctx context.Context, actor auth.UserContext, req Request) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.RoleName != auth.RoleLeader || actor.EmployeeID == "" || req.EmployeeID == actor.EmployeeID || req.GroupID == "" {
		return ErrForbidden
	}
	leaders, err := s.store.GroupLeaders(ctx, req.GroupID)
	if err != nil {
		return err
	}
	if !leaders.Includes(actor.EmployeeID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) dailyLimit(ctx context.Context, factoryID string) (int, error) {
	if factoryID != "" {
		limit, err := s.store.FactoryDailyLimit(ctx, factoryID)
		if err != nil {
			return 0, err
		}
		if limit != nil {
			return *limit, nil
		}
	}
	return s.Policy.DailyApprovalLimit, nil
}

// Delete withdraws a request. Requesters may delete their own pending
// requests; admins may delete any request.
func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) (Request, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !actor.IsAdmin() {
		if current.EmployeeID != actor.EmployeeID {
			return Request{}, ErrForbidden
		}
		if !current.Pending() {
			return Request{}, ErrInvalidState
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return Request{}, err
	}
	s.invalidate(ctx)
	return current, nil
}

// PendingDigest groups pending requests by the leaders who can decide them.
func (s *Service) PendingDigest(ctx context.Context) ([]LeaderDigest, error) {
	pending, err := s.UnifiedView(ctx, Filter{Status: StatusPending})
	if err != nil {
		return nil, err
	}
	leadersByGroup := map[string]GroupLeaders{}
	byUser := map[string][]Request{}
	var order []string
	for _, req := range pending {
		if req.GroupID == "" {
			continue
		}
		leaders, ok := leadersByGroup[req.GroupID]
		if !ok {
			leaders, err = s.store.GroupLeaders(ctx, req.GroupID)
			if err != nil {
				return nil, err
			}
			leadersByGroup[req.GroupID] = leaders
		}
		for _, userID := range leaders.UserIDs() {
			if _, seen := byUser[userID]; !seen {
				order = append(order, userID)
			}
			byUser[userID] = append(byUser[userID], req)
		}
	}
	out := make([]LeaderDigest, 0, len(order))
	for _, userID := range order {
		out = append(out, LeaderDigest{UserID: userID, Pending: byUser[userID]})
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx)
	}
}
