package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/domain/event"
)

// fakeStore is an in-memory database shared by the fake repositories.
// Transactions snapshot it and restore the snapshot on error.
type fakeStore struct {
	mu      sync.Mutex
	reqs    map[string]entity.Requisition
	items   map[string]entity.RequisitionItem
	steps   map[string]entity.ApprovalStep
	history []entity.ApprovalHistory

	// failOn makes the named operation return an error
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reqs:   make(map[string]entity.Requisition),
		items:  make(map[string]entity.RequisitionItem),
		steps:  make(map[string]entity.ApprovalStep),
		failOn: make(map[string]error),
	}
}

type snapshot struct {
	reqs    map[string]entity.Requisition
	items   map[string]entity.RequisitionItem
	steps   map[string]entity.ApprovalStep
	history []entity.ApprovalHistory
}

func (s *fakeStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		reqs:    make(map[string]entity.Requisition, len(s.reqs)),
		items:   make(map[string]entity.RequisitionItem, len(s.items)),
		steps:   make(map[string]entity.ApprovalStep, len(s.steps)),
		history: append([]entity.ApprovalHistory(nil), s.history...),
	}
	for k, v := range s.reqs {
		snap.reqs[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = v
	}
	for k, v := range s.steps {
		snap.steps[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs, s.items, s.steps, s.history = snap.reqs, snap.items, snap.steps, snap.history
}

func (s *fakeStore) fail(op string) error {
	if err, ok := s.failOn[op]; ok {
		return err
	}
	return nil
}

type fakeTxKey struct{}

type fakeTxManager struct {
	store *fakeStore
}

func (m *fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type fakeRequisitionRepo struct{ *fakeStore }

func (r fakeRequisitionRepo) Create(ctx context.Context, req *entity.Requisition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("requisition.create"); err != nil {
		return err
	}
	stored := *req
	stored.Items, stored.Steps = nil, nil
	r.reqs[req.ID] = stored
	return nil
}

func (r fakeRequisitionRepo) GetByID(ctx context.Context, id string) (*entity.Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s: %w", id, port.ErrNotFound)
	}
	req.TotalCents = 0
	for _, item := range r.items {
		if item.RequisitionID == id {
			req.TotalCents += item.LineTotalCents()
		}
	}
	return &req, nil
}

func (r fakeRequisitionRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("requisition.update_status"); err != nil {
		return err
	}
	req, ok := r.reqs[id]
	if !ok {
		return port.ErrNotFound
	}
	req.Status = status
	r.reqs[id] = req
	return nil
}

func (r fakeRequisitionRepo) SetDecidedAt(ctx context.Context, id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.reqs[id]
	req.DecidedAt = &t
	r.reqs[id] = req
	return nil
}

func (r fakeRequisitionRepo) List(ctx context.Context, f port.ListFilter) ([]*entity.Requisition, int, error) {
	r.mu.Lock()
	var list []*entity.Requisition
	for _, req := range r.reqs {
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.Department != "" && req.Department != f.Department {
			continue
		}
		if f.Query != "" && !strings.Contains(req.Number+req.Title, f.Query) {
			continue
		}
		copied := req
		list = append(list, &copied)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	total := len(list)
	if f.Offset >= len(list) {
		return nil, total, nil
	}
	list = list[f.Offset:]
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list, total, nil
}

type fakeItemRepo struct{ *fakeStore }

func (r fakeItemRepo) Create(ctx context.Context, item *entity.RequisitionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.CreatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

func (r fakeItemRepo) GetByID(ctx context.Context, id string) (*entity.RequisitionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, port.ErrNotFound)
	}
	return &item, nil
}

func (r fakeItemRepo) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.RequisitionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []*entity.RequisitionItem{}
	for _, item := range r.items {
		if item.RequisitionID == requisitionID {
			copied := item
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r fakeItemRepo) UpdateStatus(ctx context.Context, id string, status approval.ItemApprovalStatus, note, reviewer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return port.ErrNotFound
	}
	item.Status, item.ReviewNote, item.ReviewedBy = status, note, reviewer
	r.items[id] = item
	return nil
}

func (r fakeItemRepo) ResetStatus(ctx context.Context, requisitionID string, from, to approval.ItemApprovalStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, item := range r.items {
		if item.RequisitionID == requisitionID && item.Status == from {
			item.Status, item.ReviewedBy = to, ""
			r.items[id] = item
			n++
		}
	}
	return n, nil
}

type fakeStepRepo struct{ *fakeStore }

func (r fakeStepRepo) Create(ctx context.Context, step *entity.ApprovalStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.UpdatedAt = time.Now()
	r.steps[step.ID] = *step
	return nil
}

func (r fakeStepRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[id]
	if !ok {
		return nil, fmt.Errorf("approval step %s: %w", id, port.ErrNotFound)
	}
	return &step, nil
}

func (r fakeStepRepo) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := []*entity.ApprovalStep{}
	for _, step := range r.steps {
		if step.RequisitionID == requisitionID {
			copied := step
			steps = append(steps, &copied)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps, nil
}

func (r fakeStepRepo) GetCurrent(ctx context.Context, requisitionID string) (*entity.ApprovalStep, error) {
	steps, _ := r.GetByRequisitionID(ctx, requisitionID)
	for _, s := range steps {
		if s.IsCurrent {
			return s, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r fakeStepRepo) Complete(ctx context.Context, id string, status, actedBy, comments string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("step.complete"); err != nil {
		return err
	}
	step := r.steps[id]
	now := time.Now()
	step.Status, step.ActedBy, step.Comments, step.ActedAt, step.IsCurrent = status, actedBy, comments, &now, false
	r.steps[id] = step
	return nil
}

func (r fakeStepRepo) SetCurrent(ctx context.Context, requisitionID, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, step := range r.steps {
		if step.RequisitionID == requisitionID {
			step.IsCurrent = id == stepID
			r.steps[id] = step
		}
	}
	return nil
}

func (r fakeStepRepo) ClearCurrent(ctx context.Context, requisitionID string) error {
	return r.SetCurrent(ctx, requisitionID, "")
}

func (r fakeStepRepo) ResetAll(ctx context.Context, requisitionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, step := range r.steps {
		if step.RequisitionID == requisitionID && step.Status != entity.StepStatusSkipped {
			step.Status, step.IsCurrent, step.ActedBy, step.Comments, step.ActedAt = entity.StepStatusPending, false, "", "", nil
			r.steps[id] = step
		}
	}
	return nil
}

func (r fakeStepRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*entity.ApprovalStep
	for _, step := range r.steps {
		if step.IsCurrent && step.IsPending() && step.UpdatedAt.Before(cutoff) {
			copied := step
			stale = append(stale, &copied)
		}
	}
	return stale, nil
}

func (r fakeStepRepo) Touch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step := r.steps[id]
	step.UpdatedAt = time.Now()
	r.steps[id] = step
	return nil
}

type fakeHistoryRepo struct{ *fakeStore }

func (r fakeHistoryRepo) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = int64(len(r.history) + 1)
	r.history = append(r.history, *h)
	return nil
}

func (r fakeHistoryRepo) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entity.ApprovalHistory{}
	for _, h := range r.history {
		if h.RequisitionID == requisitionID {
			copied := h
			out = append(out, &copied)
		}
	}
	return out, nil
}

// recordingDispatcher runs handlers synchronously and keeps every event
type recordingDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]dispatcher.Handler
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handlers: make(map[event.Type][]dispatcher.Handler)}
}

func (d *recordingDispatcher) Subscribe(name string, h dispatcher.Handler, types ...event.Type) {
	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], h)
	}
}

func (d *recordingDispatcher) Unsubscribe(name string) {}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.Lock()
	d.events = append(d.events, evt)
	handlers := d.handlers[evt.Type]
	d.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(ctx, evt)
}

func (d *recordingDispatcher) Handlers(t event.Type) []string { return nil }

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

func (d *recordingDispatcher) last(t event.Type) *event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Type == t {
			return d.events[i]
		}
	}
	return nil
}

type sentMessage struct {
	userID  string
	content string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) SendText(ctx context.Context, userID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{userID: userID, content: content})
	return nil
}

type mockExporter struct {
	written []*port.WorkbookData
}

func (m *mockExporter) Write(ctx context.Context, w io.Writer, data *port.WorkbookData) error {
	m.written = append(m.written, data)
	_, err := io.WriteString(w, "xlsx:"+data.Requisition.Number)
	return err
}

type mockStorage struct {
	files map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.files[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) GetFullPath(p string) string { return "/archive/" + p }

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
