package family

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// mockStore is an in-memory store.Store for exercising the family engine
// without a database. Uniqueness backstops (active edge pair, live pending
// invitation pair, type name) are enforced the same way the schema does.
type mockStore struct {
	mu sync.Mutex

	relTypes    map[string]*models.RelationshipType // by normalized name
	members     map[string]*models.Member
	edges       map[string]*models.Edge
	invitations map[string]*models.Invitation
	users       map[string]*models.User
}

func newMockStore() *mockStore {
	return &mockStore{
		relTypes:    make(map[string]*models.RelationshipType),
		members:     make(map[string]*models.Member),
		edges:       make(map[string]*models.Edge),
		invitations: make(map[string]*models.Invitation),
		users:       make(map[string]*models.User),
	}
}

func (m *mockStore) RelationshipTypes() store.RelationshipTypeStore { return (*mockRelTypes)(m) }
func (m *mockStore) Members() store.MemberStore                     { return (*mockMembers)(m) }
func (m *mockStore) Edges() store.EdgeStore                         { return (*mockEdges)(m) }
func (m *mockStore) Invitations() store.InvitationStore             { return (*mockInvitations)(m) }
func (m *mockStore) Users() store.UserStore                         { return (*mockUsers)(m) }

func (m *mockStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

// Test fixture helpers.

func (m *mockStore) addUser(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{
		ID:       uuid.NewString(),
		Email:    models.NormalizeEmail(email),
		IsActive: true,
	}
	m.users[u.ID] = u
	return u
}

func (m *mockStore) addMember(firstName string) *models.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := &models.Member{
		ID:        uuid.NewString(),
		FirstName: firstName,
		IsActive:  true,
	}
	m.members[mem.ID] = mem
	return mem
}

func (m *mockStore) addEdge(userID, memberID, relation string, shareable, manager bool) *models.Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Edge{
		ID:              uuid.NewString(),
		UserID:          userID,
		MemberID:        memberID,
		Relation:        relation,
		IsShareable:     shareable,
		IsManager:       manager,
		IsActive:        true,
		IsVisible:       true,
		CreatedByUserID: userID,
		CreatedAt:       time.Now(),
	}
	m.edges[e.ID] = e
	return e
}

func (m *mockStore) seedTypes() {
	for _, rt := range models.DefaultRelationshipTypes() {
		cp := *rt
		cp.ID = uuid.NewString()
		cp.IsActive = true
		m.relTypes[cp.Name] = &cp
	}
}

type mockRelTypes mockStore

func (m *mockRelTypes) Create(ctx context.Context, rt *models.RelationshipType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := models.NormalizeRelationName(rt.Name)
	if _, ok := m.relTypes[name]; ok {
		return store.ErrDuplicate
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	rt.Name = name
	cp := *rt
	m.relTypes[name] = &cp
	return nil
}

func (m *mockRelTypes) GetByName(ctx context.Context, name string) (*models.RelationshipType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.relTypes[models.NormalizeRelationName(name)]
	if !ok || !rt.IsActive {
		return nil, store.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *mockRelTypes) List(ctx context.Context, activeOnly bool) ([]*models.RelationshipType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RelationshipType
	for _, rt := range m.relTypes {
		if activeOnly && !rt.IsActive {
			continue
		}
		cp := *rt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}

func (m *mockRelTypes) ListReciprocal(ctx context.Context) ([]*models.RelationshipType, error) {
	all, _ := m.List(ctx, true)
	var out []*models.RelationshipType
	for _, rt := range all {
		if rt.IsReciprocal {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (m *mockRelTypes) ListByGeneration(ctx context.Context, offset int) ([]*models.RelationshipType, error) {
	all, _ := m.List(ctx, true)
	var out []*models.RelationshipType
	for _, rt := range all {
		if rt.GenerationOffset == offset {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (m *mockRelTypes) Update(ctx context.Context, rt *models.RelationshipType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.relTypes[rt.Name]
	if !ok {
		return store.ErrNotFound
	}
	cp := *rt
	cp.ID = existing.ID
	m.relTypes[rt.Name] = &cp
	return nil
}

func (m *mockRelTypes) UpdateRules(ctx context.Context, name string, rules map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.relTypes[models.NormalizeRelationName(name)]
	if !ok {
		return store.ErrNotFound
	}
	rt.CalculationRules = rules
	return nil
}

func (m *mockRelTypes) Deactivate(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.relTypes[models.NormalizeRelationName(name)]
	if !ok {
		return store.ErrNotFound
	}
	rt.IsActive = false
	return nil
}

type mockMembers mockStore

func (m *mockMembers) Create(ctx context.Context, mem *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	cp := *mem
	m.members[mem.ID] = &cp
	return nil
}

func (m *mockMembers) Get(ctx context.Context, id string) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *mockMembers) ListByIDs(ctx context.Context, ids []string) ([]*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Member
	for _, id := range ids {
		if mem, ok := m.members[id]; ok {
			cp := *mem
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockMembers) Update(ctx context.Context, mem *models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[mem.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *mem
	m.members[mem.ID] = &cp
	return nil
}

func (m *mockMembers) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return store.ErrNotFound
	}
	mem.IsActive = false
	return nil
}

type mockEdges mockStore

func (m *mockEdges) Create(ctx context.Context, e *models.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IsActive {
		for _, existing := range m.edges {
			if existing.IsActive && existing.UserID == e.UserID && existing.MemberID == e.MemberID {
				return store.ErrDuplicate
			}
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedByUserID == "" {
		e.CreatedByUserID = e.UserID
	}
	e.CreatedAt = time.Now()
	cp := *e
	m.edges[e.ID] = &cp
	return nil
}

func (m *mockEdges) Get(ctx context.Context, id string) (*models.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEdges) GetActiveByPair(ctx context.Context, userID, memberID string) (*models.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e.IsActive && e.UserID == userID && e.MemberID == memberID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEdges) ListByUser(ctx context.Context, userID string, f store.EdgeFilter) ([]*models.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := map[string]bool{}
	for _, id := range f.MemberIDs {
		allowed[id] = true
	}
	var out []*models.Edge
	for _, e := range m.edges {
		if e.UserID != userID {
			continue
		}
		if f.ActiveOnly && !e.IsActive {
			continue
		}
		if f.VisibleOnly && !e.IsVisible {
			continue
		}
		if f.ShareableOnly && !e.IsShareable {
			continue
		}
		if f.ManagerOnly && !e.IsManager {
			continue
		}
		if len(f.MemberIDs) > 0 && !allowed[e.MemberID] {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockEdges) ListByMember(ctx context.Context, memberID string) ([]*models.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Edge
	for _, e := range m.edges {
		if e.IsActive && e.MemberID == memberID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockEdges) Update(ctx context.Context, e *models.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[e.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *e
	m.edges[e.ID] = &cp
	return nil
}

func (m *mockEdges) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[id]
	if !ok {
		return store.ErrNotFound
	}
	e.IsActive = false
	e.UpdatedAt = time.Now()
	return nil
}

func (m *mockEdges) SetVisibility(ctx context.Context, id string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[id]
	if !ok {
		return store.ErrNotFound
	}
	e.IsVisible = visible
	return nil
}

func (m *mockEdges) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.edges, id)
	return nil
}

func (m *mockEdges) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.edges {
		if !e.IsActive && e.UpdatedAt.Before(cutoff) {
			delete(m.edges, id)
			n++
		}
	}
	return n, nil
}

type mockInvitations mockStore

func (m *mockInvitations) Create(ctx context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invitations {
		if existing.Status == models.InvitationStatusPending &&
			existing.InviterUserID == inv.InviterUserID &&
			existing.InviteeEmail == inv.InviteeEmail {
			return store.ErrDuplicate
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m *mockInvitations) Get(ctx context.Context, id string) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvitations) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitations) GetLivePending(ctx context.Context, inviterID, email string) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = models.NormalizeEmail(email)
	now := time.Now()
	for _, inv := range m.invitations {
		if inv.InviterUserID == inviterID && inv.InviteeEmail == email && inv.IsLiveAt(now) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockInvitations) HasAcceptedBetween(ctx context.Context, userA, userB string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Status != models.InvitationStatusAccepted {
			continue
		}
		if (inv.InviterUserID == userA && inv.InviteeUserID == userB) ||
			(inv.InviterUserID == userB && inv.InviteeUserID == userA) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitations) ListSent(ctx context.Context, inviterID string) ([]*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Invitation
	for _, inv := range m.invitations {
		if inv.InviterUserID == inviterID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockInvitations) ListReceived(ctx context.Context, email string) ([]*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = models.NormalizeEmail(email)
	var out []*models.Invitation
	for _, inv := range m.invitations {
		if inv.InviteeEmail == email {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockInvitations) Update(ctx context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[inv.ID]; !ok {
		return store.ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m *mockInvitations) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.invitations {
		if inv.Status == models.InvitationStatusPending && inv.IsExpiredAt(now) {
			inv.Status = models.InvitationStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockInvitations) ExpireStaleFor(ctx context.Context, inviterID, email string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = models.NormalizeEmail(email)
	n := 0
	for _, inv := range m.invitations {
		if inv.InviterUserID == inviterID && inv.InviteeEmail == email &&
			inv.Status == models.InvitationStatusPending && inv.IsExpiredAt(now) {
			inv.Status = models.InvitationStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockInvitations) CountsByUser(ctx context.Context, userID string) (*store.InvitationCounts, *store.InvitationCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var email string
	if u, ok := m.users[userID]; ok {
		email = u.Email
	}
	sent := &store.InvitationCounts{}
	received := &store.InvitationCounts{}
	tally := func(c *store.InvitationCounts, status models.InvitationStatus) {
		c.Total++
		switch status {
		case models.InvitationStatusPending:
			c.Pending++
		case models.InvitationStatusAccepted:
			c.Accepted++
		case models.InvitationStatusDeclined:
			c.Declined++
		case models.InvitationStatusExpired:
			c.Expired++
		}
	}
	for _, inv := range m.invitations {
		if inv.InviterUserID == userID {
			tally(sent, inv.Status)
		}
		if email != "" && inv.InviteeEmail == email {
			tally(received, inv.Status)
		}
	}
	return sent, received, nil
}

type mockUsers mockStore

func (m *mockUsers) Create(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return nil, store.ErrDuplicate
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := m.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, store.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", store.ErrNotFound)
	}
	return u, nil
}
