package requesthandler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/notifications"
	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/platform/validation"
	"hrsched/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	items     []requests.Request
	visible   bool
	createErr error
	decideErr error
	lastPatch string
	lastNote  string
	filter    requests.Filter
	limit     int
	offset    int
}

func (f *fakeService) List(_ context.Context, _ auth.UserContext, filter requests.Filter, limit, offset int) (requests.ListResult, error) {
	f.filter, f.limit, f.offset = filter, limit, offset
	return requests.ListResult{Requests: f.items, Total: 42}, nil
}

func (f *fakeService) Get(_ context.Context, id string) (requests.Request, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return requests.Request{}, requests.ErrNotFound
}

func (f *fakeService) CanView(context.Context, auth.UserContext, requests.Request) (bool, error) {
	return f.visible, nil
}

func (f *fakeService) Create(_ context.Context, actor auth.UserContext, in requests.Input) (requests.CreateResult, error) {
	if f.createErr != nil {
		return requests.CreateResult{}, f.createErr
	}
	created := requests.Request{
		ID:           "r-new",
		Type:         in.Type,
		Status:       requests.StatusPending,
		EmployeeID:   actor.EmployeeID,
		EmployeeName: "Ana",
		StartDate:    time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		Reason:       in.Reason,
	}
	return requests.CreateResult{Request: created, LeaderUserIDs: []string{"u-lead", "u-lead2"}}, nil
}

func (f *fakeService) Update(_ context.Context, _ auth.UserContext, id string, patch []byte) (requests.Request, requests.Request, error) {
	f.lastPatch = string(patch)
	before, err := f.Get(context.Background(), id)
	if err != nil {
		return requests.Request{}, requests.Request{}, err
	}
	after := before
	after.Reason = "patched"
	return before, after, nil
}

func (f *fakeService) decide(id, status, note string) (requests.DecisionResult, error) {
	f.lastNote = note
	if f.decideErr != nil {
		return requests.DecisionResult{}, f.decideErr
	}
	before, err := f.Get(context.Background(), id)
	if err != nil {
		return requests.DecisionResult{}, err
	}
	after := before
	after.Status = status
	return requests.DecisionResult{Request: after, Before: before, RequesterUserID: "u-ana"}, nil
}

func (f *fakeService) Approve(_ context.Context, _ auth.UserContext, id, note string) (requests.DecisionResult, error) {
	return f.decide(id, requests.StatusApproved, note)
}

func (f *fakeService) Reject(_ context.Context, _ auth.UserContext, id, note string) (requests.DecisionResult, error) {
	return f.decide(id, requests.StatusRejected, note)
}

func (f *fakeService) Delete(ctx context.Context, _ auth.UserContext, id string) (requests.Request, error) {
	return f.Get(ctx, id)
}

type sent struct {
	users []string
	ntype string
	title string
	body  string
}

type fakeNotifier struct {
	sent []sent

	mu        sync.Mutex
	announced []string
	release   chan struct{}
}

func (n *fakeNotifier) Create(_ context.Context, userID, ntype, title, body string) error {
	n.sent = append(n.sent, sent{[]string{userID}, ntype, title, body})
	return nil
}

func (n *fakeNotifier) Notify(_ context.Context, userIDs []string, ntype, title, body string) error {
	n.sent = append(n.sent, sent{userIDs, ntype, title, body})
	return nil
}

func (n *fakeNotifier) Announce(ctx context.Context, text string) {
	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announced = append(n.announced, text)
}

func (n *fakeNotifier) Announced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.announced...)
}

type fakeQueue struct {
	types []string
	runs  []jobs.RunFunc
}

func (q *fakeQueue) Enqueue(jobType string, run jobs.RunFunc) bool {
	q.types = append(q.types, jobType)
	q.runs = append(q.runs, run)
	return true
}

var (
	employee = auth.UserContext{UserID: "u-ana", RoleName: auth.RoleEmployee, EmployeeID: "e-ana"}
	leader   = auth.UserContext{UserID: "u-lead", RoleName: auth.RoleLeader, EmployeeID: "e-lead"}
)

func pendingRequest() requests.Request {
	return requests.Request{
		ID:         "r1",
		Type:       requests.TypeTimeOff,
		Status:     requests.StatusPending,
		EmployeeID: "e-ana",
		StartDate:  time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
		Reason:     "Vacation",
	}
}

func setup(user *auth.UserContext) (*fakeService, *fakeNotifier, *handlertest.Recorder, http.Handler) {
	svc := &fakeService{items: []requests.Request{pendingRequest()}, visible: true}
	notifier := &fakeNotifier{}
	auditor := &handlertest.Recorder{}
	h := NewHandler(svc, auth.RolePermissionStore{}, notifier, auditor, nil)
	return svc, notifier, auditor, handlertest.Router(h, user)
}

func TestListRequests(t *testing.T) {
	svc, _, _, router := setup(&employee)

	rec := handlertest.Do(t, router, http.MethodGet, "/requests?year=2024&month=6&status=pending&limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "42", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, requests.Filter{Year: 2024, Month: 6, Status: requests.StatusPending}, svc.filter)
	assert.Equal(t, 10, svc.limit)
	assert.Equal(t, 5, svc.offset)

	var items []map[string]any
	handlertest.Decode(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "2024-06-20", items[0]["startDate"])

	rec = handlertest.Do(t, router, http.MethodGet, "/requests?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", handlertest.ErrorCode(t, rec))
}

func TestRequestsRequireAuthentication(t *testing.T) {
	_, _, _, router := setup(nil)
	rec := handlertest.Do(t, router, http.MethodGet, "/requests", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetRequest(t *testing.T) {
	svc, _, _, router := setup(&employee)

	rec := handlertest.Do(t, router, http.MethodGet, "/requests/r1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = handlertest.Do(t, router, http.MethodGet, "/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.visible = false
	rec = handlertest.Do(t, router, http.MethodGet, "/requests/r1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "requests outside the actor's scope are hidden")
}

func TestCreateRequestNotifiesLeaders(t *testing.T) {
	_, notifier, auditor, router := setup(&employee)

	rec := handlertest.Do(t, router, http.MethodPost, "/requests", map[string]any{
		"type":      "time_off",
		"startDate": "2024-06-20",
		"endDate":   "2024-06-21",
		"reason":    "Vacation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	handlertest.Decode(t, rec, &created)
	assert.Equal(t, "r-new", created["id"])
	assert.Equal(t, "pending", created["status"])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"u-lead", "u-lead2"}, notifier.sent[0].users)
	assert.Equal(t, notifications.TypeRequestSubmitted, notifier.sent[0].ntype)
	assert.Equal(t, "Ana requested time off for 2024-06-20 to 2024-06-21.", notifier.sent[0].body)
	assert.Eventually(t, func() bool {
		return len(notifier.Announced()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{notifier.sent[0].body}, notifier.Announced())
	assert.Equal(t, []string{"request.create"}, auditor.Actions())
}

func TestCreateRequestDoesNotWaitForChat(t *testing.T) {
	svc := &fakeService{items: []requests.Request{pendingRequest()}, visible: true}
	notifier := &fakeNotifier{release: make(chan struct{})}
	router := handlertest.Router(NewHandler(svc, auth.RolePermissionStore{}, notifier, nil, nil), &employee)

	done := make(chan int, 1)
	go func() {
		done <- handlertest.Do(t, router, http.MethodPost, "/requests", map[string]any{
			"type": "time_off", "startDate": "2024-06-20", "reason": "Vacation",
		}).Code
	}()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusCreated, code)
	case <-time.After(2 * time.Second):
		t.Fatal("create blocked on the chat announcement")
	}
	assert.Empty(t, notifier.Announced())

	close(notifier.release)
	assert.Eventually(t, func() bool {
		return len(notifier.Announced()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCreateRequestQueuesAnnouncement(t *testing.T) {
	svc := &fakeService{items: []requests.Request{pendingRequest()}, visible: true}
	notifier := &fakeNotifier{}
	queue := &fakeQueue{}
	h := NewHandler(svc, auth.RolePermissionStore{}, notifier, nil, nil)
	h.Jobs = queue
	router := handlertest.Router(h, &employee)

	rec := handlertest.Do(t, router, http.MethodPost, "/requests", map[string]any{
		"type": "time_off", "startDate": "2024-06-20", "reason": "Vacation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, notifier.Announced())
	require.Equal(t, []string{jobs.JobRequestAnnounce}, queue.types)

	details, err := queue.runs[0](context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"requestId": "r-new"}, details)
	assert.Len(t, notifier.Announced(), 1)
}

func TestCreateRequestErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"malformed body", nil, `{"type":`, http.StatusBadRequest, "invalid_payload"},
		{"validation", &validation.Error{Issues: []validation.Issue{{Field: "reason", Reason: "is required"}}}, `{"type":"time_off"}`, http.StatusBadRequest, "validation_error"},
		{"policy", &requests.PolicyError{Code: requests.CodeInsufficientNotice, Message: "too late"}, `{"type":"time_off"}`, http.StatusUnprocessableEntity, requests.CodeInsufficientNotice},
		{"forbidden", requests.ErrForbidden, `{"type":"time_off"}`, http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, notifier, auditor, router := setup(&employee)
			svc.createErr = tc.err
			rec := handlertest.Do(t, router, http.MethodPost, "/requests", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, handlertest.ErrorCode(t, rec))
			assert.Empty(t, notifier.sent)
			assert.Empty(t, auditor.Events)
		})
	}
}

func TestUpdateRequestPassesMergePatch(t *testing.T) {
	svc, _, auditor, router := setup(&employee)

	rec := handlertest.Do(t, router, http.MethodPatch, "/requests/r1", `{"reason":"patched"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"reason":"patched"}`, svc.lastPatch)
	require.Len(t, auditor.Events, 1)
	assert.Equal(t, "Vacation", auditor.Events[0].Before.(requests.Request).Reason)
	assert.Equal(t, "patched", auditor.Events[0].After.(requests.Request).Reason)

	rec = handlertest.Do(t, router, http.MethodPatch, "/requests/r1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideRequest(t *testing.T) {
	svc, notifier, auditor, router := setup(&leader)

	rec := handlertest.Do(t, router, http.MethodPost, "/requests/r1/approve", map[string]string{"note": " enjoy "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "enjoy", svc.lastNote)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"u-ana"}, notifier.sent[0].users)
	assert.Equal(t, notifications.TypeRequestApproved, notifier.sent[0].ntype)
	assert.Equal(t, "Your time off request for 2024-06-20 was approved. Note: enjoy", notifier.sent[0].body)

	rec = handlertest.Do(t, router, http.MethodPost, "/requests/r1/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code, "the note is optional")
	assert.Equal(t, notifications.TypeRequestRejected, notifier.sent[1].ntype)
	assert.Equal(t, []string{"request.approve", "request.reject"}, auditor.Actions())

	svc.decideErr = requests.ErrInvalidState
	rec = handlertest.Do(t, router, http.MethodPost, "/requests/r1/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", handlertest.ErrorCode(t, rec))

	svc.decideErr = &requests.PolicyError{Code: requests.CodeDailyApprovalLimit, Message: "limit reached"}
	rec = handlertest.Do(t, router, http.MethodPost, "/requests/r1/approve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, requests.CodeDailyApprovalLimit, handlertest.ErrorCode(t, rec))
}

func TestEmployeesCannotDecide(t *testing.T) {
	_, _, _, router := setup(&employee)
	rec := handlertest.Do(t, router, http.MethodPost, "/requests/r1/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteRequest(t *testing.T) {
	_, _, auditor, router := setup(&employee)

	rec := handlertest.Do(t, router, http.MethodDelete, "/requests/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, auditor.Events, 1)
	assert.Equal(t, "delete", auditor.Events[0].Action)
	assert.Nil(t, auditor.Events[0].After)

	rec = handlertest.Do(t, router, http.MethodDelete, "/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
