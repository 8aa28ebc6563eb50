// Package testutil holds in-memory fakes for the mail store, the oracle,
// the LINE push port and the delivery repository.
package testutil

import (
	"context"
	"encoding/base64"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huavcjj/wavemail/internal/domain/delivery"
	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/triage"
)

type OracleCall struct {
	System string
	User   string
}

// Oracle is a scripted oracle.Client.
type Oracle struct {
	mu      sync.Mutex
	calls   []OracleCall
	Respond func(system, user string) (string, error)
}

// NewOracle returns an Oracle that always answers reply.
func NewOracle(reply string) *Oracle {
	return &Oracle{Respond: func(string, string) (string, error) { return reply, nil }}
}

func (o *Oracle) Complete(ctx context.Context, system, user string) (string, error) {
	o.mu.Lock()
	o.calls = append(o.calls, OracleCall{System: system, User: user})
	respond := o.Respond
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond == nil {
		return "", nil
	}
	return respond(system, user)
}

func (o *Oracle) Calls() []OracleCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.calls)
}

func (o *Oracle) CallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type Mutation struct {
	ID     string
	Op     string
	Add    []string
	Remove []string
}

// Store is an in-memory mail.Store. Search returns Results[expr] when set,
// otherwise every message in insertion order.
type Store struct {
	mu          sync.Mutex
	messages    map[string]*mail.Message
	order       []string
	queries     []string
	limits      []int
	mutations   []Mutation
	Results     map[string][]string
	SearchErr   error
	GetErr      map[string]error
	MutationErr map[string]error
}

func NewStore(msgs ...*mail.Message) *Store {
	s := &Store{
		messages:    make(map[string]*mail.Message),
		Results:     make(map[string][]string),
		GetErr:      make(map[string]error),
		MutationErr: make(map[string]error),
	}
	for _, m := range msgs {
		s.Add(m)
	}
	return s
}

func (s *Store) Add(m *mail.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; !ok {
		s.order = append(s.order, m.ID)
	}
	s.messages[m.ID] = m
}

func (s *Store) Search(ctx context.Context, expr string, max int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, expr)
	s.limits = append(s.limits, max)
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	ids, ok := s.Results[expr]
	if !ok {
		ids = s.order
	}
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return slices.Clone(ids), nil
}

func (s *Store) Get(ctx context.Context, id string) (*mail.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.GetErr[id]; err != nil {
		return nil, err
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, mail.ErrNotFound
	}
	return m, nil
}

func (s *Store) MarkSpam(ctx context.Context, id string) error {
	return s.mutate(Mutation{ID: id, Op: "spam"})
}

func (s *Store) MoveToTrash(ctx context.Context, id string) error {
	return s.mutate(Mutation{ID: id, Op: "trash"})
}

func (s *Store) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	return s.mutate(Mutation{ID: id, Op: "modify", Add: add, Remove: remove})
}

func (s *Store) mutate(m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, m)
	return s.MutationErr[m.ID]
}

func (s *Store) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries)
}

// Limits returns the max argument of every Search call.
func (s *Store) Limits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.limits)
}

func (s *Store) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mutations)
}

// NewMessage builds a single-part text/plain message.
func NewMessage(id, from, subject, body string) *mail.Message {
	return &mail.Message{
		ID:       id,
		LabelIDs: []string{mail.LabelInbox, mail.LabelUnread},
		Headers: []mail.Header{
			{Name: "From", Value: from},
			{Name: "Subject", Value: subject},
			{Name: "Date", Value: "Mon, 3 Mar 2025 09:00:00 +0000"},
		},
		Payload: &mail.Part{
			MimeType: "text/plain",
			Charset:  "UTF-8",
			Data:     base64.URLEncoding.EncodeToString([]byte(body)),
		},
	}
}

// Contains reports whether any call's user content contains s.
func Contains(calls []OracleCall, s string) bool {
	for _, c := range calls {
		if strings.Contains(c.User, s) {
			return true
		}
	}
	return false
}

type Push struct {
	UserID  string
	Message string
}

// Line is a fake LINE push client.
type Line struct {
	mu     sync.Mutex
	pushed []Push
	Err    error
}

func (l *Line) PushMessage(ctx context.Context, userID, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.pushed = append(l.pushed, Push{UserID: userID, Message: message})
	return nil
}

func (l *Line) Pushed() []Push {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.pushed)
}

// Deliveries is an in-memory delivery.DeliveryRepo.
type Deliveries struct {
	mu      sync.Mutex
	records []delivery.Delivery
	Err     error
}

func (d *Deliveries) Record(ctx context.Context, rec *delivery.Delivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = time.Now()
	}
	d.records = append(d.records, *rec)
	return nil
}

func (d *Deliveries) Exists(ctx context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return false, d.Err
	}
	for _, r := range d.records {
		if r.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (d *Deliveries) ListSince(ctx context.Context, since time.Time) ([]delivery.Delivery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var out []delivery.Delivery
	for _, r := range d.records {
		if !r.DeliveredAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Pipeline returns canned triage views. Err is returned by every view.
type Pipeline struct {
	mu     sync.Mutex
	calls  []string
	Notes  []triage.NotificationItem
	Todos  []triage.TodoItem
	Sorted triage.SortResult
	Err    error
}

func (p *Pipeline) Notifications(ctx context.Context, n int) ([]triage.NotificationItem, error) {
	p.record("notifications")
	if p.Err != nil {
		return nil, p.Err
	}
	return slices.Clone(p.Notes), nil
}

func (p *Pipeline) TodoList(ctx context.Context, n int) ([]triage.TodoItem, error) {
	p.record("todolist")
	if p.Err != nil {
		return nil, p.Err
	}
	return slices.Clone(p.Todos), nil
}

func (p *Pipeline) SortInbox(ctx context.Context) (triage.SortResult, error) {
	p.record("sort")
	if p.Err != nil {
		return triage.SortResult{}, p.Err
	}
	return p.Sorted, nil
}

func (p *Pipeline) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *Pipeline) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op)
}
