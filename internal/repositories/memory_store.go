package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps every table in process memory. Transactions are
// serialized and run against a copy that replaces the live data on success,
// so a failing mutation leaves nothing behind.
type MemoryStore struct {
	memTx
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: &memData{}}
	s.memTx = memTx{d: s.data, mu: &s.mu}
	return s
}

type memData struct {
	seq int64

	deals          []models.Deal
	parties        []models.Party
	pofRequests    []models.PoFRequest
	pofAttests     []models.PoFAttestation
	escrowPolicies []models.EscrowPolicy
	escrowFundings []models.EscrowFunding
	psbtSessions   []models.PSBTSession
	psbtSignatures []models.PSBTSignature
	contingencies  []models.Contingency
	milestones     []models.Milestone
	documents      []models.Document
	funds          []models.Fund
	disbursements  []models.Disbursement
	audit          []models.AuditEvent
}

func (d *memData) clone() *memData {
	return &memData{
		seq:            d.seq,
		deals:          append([]models.Deal(nil), d.deals...),
		parties:        append([]models.Party(nil), d.parties...),
		pofRequests:    append([]models.PoFRequest(nil), d.pofRequests...),
		pofAttests:     append([]models.PoFAttestation(nil), d.pofAttests...),
		escrowPolicies: append([]models.EscrowPolicy(nil), d.escrowPolicies...),
		escrowFundings: append([]models.EscrowFunding(nil), d.escrowFundings...),
		psbtSessions:   append([]models.PSBTSession(nil), d.psbtSessions...),
		psbtSignatures: append([]models.PSBTSignature(nil), d.psbtSignatures...),
		contingencies:  append([]models.Contingency(nil), d.contingencies...),
		milestones:     append([]models.Milestone(nil), d.milestones...),
		documents:      append([]models.Document(nil), d.documents...),
		funds:          append([]models.Fund(nil), d.funds...),
		disbursements:  append([]models.Disbursement(nil), d.disbursements...),
		audit:          append([]models.AuditEvent(nil), d.audit...),
	}
}

func (d *memData) next() (int64, time.Time) {
	d.seq++
	return d.seq, time.Now().UTC()
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(memTx{d: work}); err != nil {
		return err
	}
	*s.data = *work
	return nil
}

// memTx implements Tx over one data set. Outside a transaction mu guards
// each call; inside one the store lock is already held and mu is nil.
type memTx struct {
	d  *memData
	mu *sync.Mutex
}

func (t memTx) guard() func() {
	if t.mu == nil {
		return func() {}
	}
	t.mu.Lock()
	return t.mu.Unlock
}

func find[T any](rows []T, match func(T) bool) (int, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if match(rows[i]) {
			return i, true
		}
	}
	return -1, false
}

func filter[T any](rows []T, match func(T) bool) []T {
	var out []T
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func reversed[T any](rows []T) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}

// Deals

func (t memTx) CreateDeal(_ context.Context, d *models.Deal) error {
	defer t.guard()()
	_, now := t.d.next()
	d.CreatedAt, d.UpdatedAt = now, now
	t.d.deals = append(t.d.deals, *d)
	return nil
}

func (t memTx) GetDeal(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	defer t.guard()()
	i, ok := find(t.d.deals, func(d models.Deal) bool { return d.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	d := t.d.deals[i]
	return &d, nil
}

func (t memTx) LockDeal(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	defer t.guard()()
	i, ok := find(t.d.deals, func(d models.Deal) bool { return d.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	d := t.d.deals[i]
	return &d, nil
}

func (t memTx) ListDeals(_ context.Context, f DealFilter) ([]models.Deal, error) {
	defer t.guard()()
	out := filter(t.d.deals, func(d models.Deal) bool {
		if f.Status != nil && d.Status != *f.Status {
			return false
		}
		if f.UpdatedAfter != nil && !d.UpdatedAt.After(*f.UpdatedAfter) {
			return false
		}
		if f.AuditedAfter != nil && !slices.ContainsFunc(t.d.audit, func(e models.AuditEvent) bool {
			return e.DealID == d.ID && e.CreatedAt.After(*f.AuditedAfter)
		}) {
			return false
		}
		if f.FundingOverdue != nil {
			if d.DeadlineFunding == nil || !d.DeadlineFunding.Before(*f.FundingOverdue) {
				return false
			}
			if !models.IsForwardMove(d.Status, models.DealStatusFunded) || d.Status == models.DealStatusFunded {
				return false
			}
		}
		return true
	})
	out = reversed(out)
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.EffectiveLimit() {
		out = out[:f.EffectiveLimit()]
	}
	return out, nil
}

func (t memTx) CompareAndSetDealStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	defer t.guard()()
	i, ok := find(t.d.deals, func(d models.Deal) bool { return d.ID == id })
	if !ok || t.d.deals[i].Status != from {
		return false, nil
	}
	_, now := t.d.next()
	t.d.deals[i].Status = to
	t.d.deals[i].UpdatedAt = now
	return true, nil
}

func (t memTx) UpdateDeal(_ context.Context, d *models.Deal) error {
	defer t.guard()()
	i, ok := find(t.d.deals, func(x models.Deal) bool { return x.ID == d.ID })
	if !ok {
		return ErrNotFound
	}
	_, now := t.d.next()
	d.CreatedAt = t.d.deals[i].CreatedAt
	d.TransactionType = t.d.deals[i].TransactionType
	d.PropertyAddress = t.d.deals[i].PropertyAddress
	d.UpdatedAt = now
	t.d.deals[i] = *d
	return nil
}

// Parties

func (t memTx) CreateParty(_ context.Context, p *models.Party) error {
	defer t.guard()()
	_, now := t.d.next()
	p.CreatedAt = now
	t.d.parties = append(t.d.parties, *p)
	return nil
}

func (t memTx) GetParty(_ context.Context, id uuid.UUID) (*models.Party, error) {
	defer t.guard()()
	i, ok := find(t.d.parties, func(p models.Party) bool { return p.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	p := t.d.parties[i]
	return &p, nil
}

func (t memTx) ListParties(_ context.Context, dealID uuid.UUID) ([]models.Party, error) {
	defer t.guard()()
	return filter(t.d.parties, func(p models.Party) bool { return p.DealID == dealID }), nil
}

func (t memTx) UpdatePartyWallet(_ context.Context, p *models.Party) error {
	defer t.guard()()
	i, ok := find(t.d.parties, func(x models.Party) bool { return x.ID == p.ID })
	if !ok {
		return ErrNotFound
	}
	t.d.parties[i].WalletDescriptor = p.WalletDescriptor
	t.d.parties[i].PubKey = p.PubKey
	return nil
}

// Proof of funds

func (t memTx) CreatePoFRequest(_ context.Context, r *models.PoFRequest) error {
	defer t.guard()()
	r.Seq, r.CreatedAt = t.d.next()
	t.d.pofRequests = append(t.d.pofRequests, *r)
	return nil
}

func (t memTx) LatestPoFRequest(_ context.Context, dealID uuid.UUID) (*models.PoFRequest, error) {
	defer t.guard()()
	i, ok := find(t.d.pofRequests, func(r models.PoFRequest) bool { return r.DealID == dealID })
	if !ok {
		return nil, ErrNotFound
	}
	r := t.d.pofRequests[i]
	return &r, nil
}

func (t memTx) CreatePoFAttestation(_ context.Context, a *models.PoFAttestation) error {
	defer t.guard()()
	a.Seq, a.CreatedAt = t.d.next()
	a.Verified, a.VerifiedAt = false, nil
	t.d.pofAttests = append(t.d.pofAttests, *a)
	return nil
}

func (t memTx) LatestPoFAttestation(_ context.Context, dealID uuid.UUID) (*models.PoFAttestation, error) {
	defer t.guard()()
	i, ok := find(t.d.pofAttests, func(a models.PoFAttestation) bool { return a.DealID == dealID })
	if !ok {
		return nil, ErrNotFound
	}
	a := t.d.pofAttests[i]
	return &a, nil
}

func (t memTx) MarkAttestationVerified(_ context.Context, id uuid.UUID, at time.Time) (*models.PoFAttestation, error) {
	defer t.guard()()
	i, ok := find(t.d.pofAttests, func(a models.PoFAttestation) bool { return a.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	a := &t.d.pofAttests[i]
	a.Verified = true
	if a.VerifiedAt == nil {
		a.VerifiedAt = &at
	}
	out := *a
	return &out, nil
}

// Escrow

func (t memTx) CreateEscrowPolicy(_ context.Context, p *models.EscrowPolicy) error {
	defer t.guard()()
	p.Seq, p.CreatedAt = t.d.next()
	t.d.escrowPolicies = append(t.d.escrowPolicies, *p)
	return nil
}

func (t memTx) LatestEscrowPolicy(_ context.Context, dealID uuid.UUID) (*models.EscrowPolicy, error) {
	defer t.guard()()
	i, ok := find(t.d.escrowPolicies, func(p models.EscrowPolicy) bool { return p.DealID == dealID })
	if !ok {
		return nil, ErrNotFound
	}
	p := t.d.escrowPolicies[i]
	return &p, nil
}

func (t memTx) CreateEscrowFunding(_ context.Context, f *models.EscrowFunding) error {
	defer t.guard()()
	f.Seq, f.CreatedAt = t.d.next()
	t.d.escrowFundings = append(t.d.escrowFundings, *f)
	return nil
}

func (t memTx) LatestEscrowFunding(_ context.Context, dealID uuid.UUID) (*models.EscrowFunding, error) {
	defer t.guard()()
	i, ok := find(t.d.escrowFundings, func(f models.EscrowFunding) bool { return f.DealID == dealID })
	if !ok {
		return nil, ErrNotFound
	}
	f := t.d.escrowFundings[i]
	return &f, nil
}

// PSBT

func (t memTx) CreatePSBTSession(_ context.Context, s *models.PSBTSession) error {
	defer t.guard()()
	s.Seq, s.CreatedAt = t.d.next()
	t.d.psbtSessions = append(t.d.psbtSessions, *s)
	return nil
}

func (t memTx) GetPSBTSession(_ context.Context, id uuid.UUID) (*models.PSBTSession, error) {
	defer t.guard()()
	i, ok := find(t.d.psbtSessions, func(s models.PSBTSession) bool { return s.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	s := t.d.psbtSessions[i]
	return &s, nil
}

func (t memTx) ListPSBTSessions(_ context.Context, dealID uuid.UUID) ([]models.PSBTSession, error) {
	defer t.guard()()
	return reversed(filter(t.d.psbtSessions, func(s models.PSBTSession) bool { return s.DealID == dealID })), nil
}

func (t memTx) UpdatePSBTSession(_ context.Context, s *models.PSBTSession) error {
	defer t.guard()()
	i, ok := find(t.d.psbtSessions, func(x models.PSBTSession) bool { return x.ID == s.ID })
	if !ok {
		return ErrNotFound
	}
	t.d.psbtSessions[i].Status = s.Status
	t.d.psbtSessions[i].BroadcastTxID = s.BroadcastTxID
	return nil
}

func (t memTx) CreatePSBTSignature(_ context.Context, sig *models.PSBTSignature) error {
	defer t.guard()()
	sig.Seq, sig.CreatedAt = t.d.next()
	t.d.psbtSignatures = append(t.d.psbtSignatures, *sig)
	return nil
}

func (t memTx) LatestPSBTSignature(_ context.Context, sessionID, partyID uuid.UUID) (*models.PSBTSignature, error) {
	defer t.guard()()
	i, ok := find(t.d.psbtSignatures, func(s models.PSBTSignature) bool {
		return s.SessionID == sessionID && s.PartyID == partyID
	})
	if !ok {
		return nil, ErrNotFound
	}
	s := t.d.psbtSignatures[i]
	return &s, nil
}

func (t memTx) ListPSBTSignatures(_ context.Context, sessionID uuid.UUID) ([]models.PSBTSignature, error) {
	defer t.guard()()
	return filter(t.d.psbtSignatures, func(s models.PSBTSignature) bool { return s.SessionID == sessionID }), nil
}

func (t memTx) UpdatePSBTSignature(_ context.Context, sig *models.PSBTSignature) error {
	defer t.guard()()
	i, ok := find(t.d.psbtSignatures, func(x models.PSBTSignature) bool { return x.ID == sig.ID })
	if !ok {
		return ErrNotFound
	}
	t.d.psbtSignatures[i].Status = sig.Status
	t.d.psbtSignatures[i].SignedPSBTBase64 = sig.SignedPSBTBase64
	t.d.psbtSignatures[i].SignedAt = sig.SignedAt
	return nil
}

// Checklists

func (t memTx) CreateContingency(_ context.Context, c *models.Contingency) error {
	defer t.guard()()
	c.Seq, c.CreatedAt = t.d.next()
	t.d.contingencies = append(t.d.contingencies, *c)
	return nil
}

func (t memTx) GetContingency(_ context.Context, id uuid.UUID) (*models.Contingency, error) {
	defer t.guard()()
	i, ok := find(t.d.contingencies, func(c models.Contingency) bool { return c.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	c := t.d.contingencies[i]
	return &c, nil
}

func sortContingencies(cs []models.Contingency) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].Deadline, cs[j].Deadline
		switch {
		case a == nil && b == nil:
			return cs[i].Seq < cs[j].Seq
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return cs[i].Seq < cs[j].Seq
	})
}

func (t memTx) ListContingencies(_ context.Context, dealID uuid.UUID) ([]models.Contingency, error) {
	defer t.guard()()
	out := filter(t.d.contingencies, func(c models.Contingency) bool { return c.DealID == dealID })
	sortContingencies(out)
	return out, nil
}

func (t memTx) ListOverdueContingencies(_ context.Context, now time.Time) ([]models.Contingency, error) {
	defer t.guard()()
	out := filter(t.d.contingencies, func(c models.Contingency) bool {
		return c.Status == models.ContingencyStatusPending && c.Deadline != nil && c.Deadline.Before(now)
	})
	sortContingencies(out)
	return out, nil
}

func (t memTx) UpdateContingency(_ context.Context, c *models.Contingency) error {
	defer t.guard()()
	i, ok := find(t.d.contingencies, func(x models.Contingency) bool { return x.ID == c.ID })
	if !ok {
		return ErrNotFound
	}
	c.CreatedAt, c.Seq = t.d.contingencies[i].CreatedAt, t.d.contingencies[i].Seq
	t.d.contingencies[i] = *c
	return nil
}

func (t memTx) CreateMilestone(_ context.Context, m *models.Milestone) error {
	defer t.guard()()
	m.Seq, m.CreatedAt = t.d.next()
	t.d.milestones = append(t.d.milestones, *m)
	return nil
}

func (t memTx) GetMilestone(_ context.Context, id uuid.UUID) (*models.Milestone, error) {
	defer t.guard()()
	i, ok := find(t.d.milestones, func(m models.Milestone) bool { return m.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	m := t.d.milestones[i]
	return &m, nil
}

func (t memTx) ListMilestones(_ context.Context, dealID uuid.UUID) ([]models.Milestone, error) {
	defer t.guard()()
	out := filter(t.d.milestones, func(m models.Milestone) bool { return m.DealID == dealID })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (t memTx) UpdateMilestone(_ context.Context, m *models.Milestone) error {
	defer t.guard()()
	i, ok := find(t.d.milestones, func(x models.Milestone) bool { return x.ID == m.ID })
	if !ok {
		return ErrNotFound
	}
	cur := &t.d.milestones[i]
	cur.Name = m.Name
	cur.Description = m.Description
	cur.DueDate = m.DueDate
	cur.CompletedAt = m.CompletedAt
	cur.CompletedByPartyID = m.CompletedByPartyID
	return nil
}

// Documents, funds, disbursements

func (t memTx) CreateDocument(_ context.Context, d *models.Document) error {
	defer t.guard()()
	d.Seq, d.CreatedAt = t.d.next()
	t.d.documents = append(t.d.documents, *d)
	return nil
}

func (t memTx) GetDocument(_ context.Context, id uuid.UUID) (*models.Document, error) {
	defer t.guard()()
	i, ok := find(t.d.documents, func(d models.Document) bool { return d.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	d := t.d.documents[i]
	return &d, nil
}

func (t memTx) ListDocuments(_ context.Context, dealID uuid.UUID) ([]models.Document, error) {
	defer t.guard()()
	return reversed(filter(t.d.documents, func(d models.Document) bool { return d.DealID == dealID })), nil
}

func (t memTx) UpdateDocument(_ context.Context, d *models.Document) error {
	defer t.guard()()
	i, ok := find(t.d.documents, func(x models.Document) bool { return x.ID == d.ID })
	if !ok {
		return ErrNotFound
	}
	cur := &t.d.documents[i]
	cur.Status, cur.FileURL, cur.FileHash = d.Status, d.FileURL, d.FileHash
	return nil
}

func (t memTx) CreateFund(_ context.Context, f *models.Fund) error {
	defer t.guard()()
	f.Seq, f.CreatedAt = t.d.next()
	t.d.funds = append(t.d.funds, *f)
	return nil
}

func (t memTx) GetFund(_ context.Context, id uuid.UUID) (*models.Fund, error) {
	defer t.guard()()
	i, ok := find(t.d.funds, func(f models.Fund) bool { return f.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	f := t.d.funds[i]
	return &f, nil
}

func (t memTx) ListFunds(_ context.Context, dealID uuid.UUID) ([]models.Fund, error) {
	defer t.guard()()
	return filter(t.d.funds, func(f models.Fund) bool { return f.DealID == dealID }), nil
}

func (t memTx) UpdateFund(_ context.Context, f *models.Fund) error {
	defer t.guard()()
	i, ok := find(t.d.funds, func(x models.Fund) bool { return x.ID == f.ID })
	if !ok {
		return ErrNotFound
	}
	cur := &t.d.funds[i]
	cur.Status, cur.FundedTxID, cur.ReleasedTxID = f.Status, f.FundedTxID, f.ReleasedTxID
	return nil
}

func (t memTx) CreateDisbursement(_ context.Context, d *models.Disbursement) error {
	defer t.guard()()
	d.Seq, d.CreatedAt = t.d.next()
	t.d.disbursements = append(t.d.disbursements, *d)
	return nil
}

func (t memTx) GetDisbursement(_ context.Context, id uuid.UUID) (*models.Disbursement, error) {
	defer t.guard()()
	i, ok := find(t.d.disbursements, func(d models.Disbursement) bool { return d.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	d := t.d.disbursements[i]
	return &d, nil
}

func (t memTx) ListDisbursements(_ context.Context, dealID uuid.UUID) ([]models.Disbursement, error) {
	defer t.guard()()
	return filter(t.d.disbursements, func(d models.Disbursement) bool { return d.DealID == dealID }), nil
}

func (t memTx) UpdateDisbursement(_ context.Context, d *models.Disbursement) error {
	defer t.guard()()
	i, ok := find(t.d.disbursements, func(x models.Disbursement) bool { return x.ID == d.ID })
	if !ok {
		return ErrNotFound
	}
	cur := &t.d.disbursements[i]
	cur.Status, cur.PaidTxID, cur.PaidAt = d.Status, d.PaidTxID, d.PaidAt
	return nil
}

// Audit

func (t memTx) AppendAuditEvent(_ context.Context, e *models.AuditEvent) error {
	defer t.guard()()
	e.Seq, e.CreatedAt = t.d.next()
	t.d.audit = append(t.d.audit, *e)
	return nil
}

func (t memTx) LastAuditHash(_ context.Context, dealID uuid.UUID) (string, error) {
	defer t.guard()()
	i, ok := find(t.d.audit, func(e models.AuditEvent) bool { return e.DealID == dealID })
	if !ok {
		return models.GenesisHash, nil
	}
	return t.d.audit[i].Hash, nil
}

func (t memTx) ListAuditEvents(_ context.Context, dealID uuid.UUID, newestFirst bool) ([]models.AuditEvent, error) {
	defer t.guard()()
	out := filter(t.d.audit, func(e models.AuditEvent) bool { return e.DealID == dealID })
	if newestFirst {
		out = reversed(out)
	}
	return out, nil
}

// TamperAuditEvent overwrites a stored event's payload without re-hashing.
// Only chain verification tests use it.
func (s *MemoryStore) TamperAuditEvent(id uuid.UUID, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := find(s.data.audit, func(e models.AuditEvent) bool { return e.ID == id })
	if ok {
		s.data.audit[i].Payload = payload
	}
	return ok
}
