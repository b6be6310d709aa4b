package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/internal/fraud"
)

// In-memory fakes implementing the ports. State mutations mirror what the
// SQL repositories do, including the compare-and-swap on claim state.

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeClaimRepo struct {
	claims map[int64]*entity.Claim
	nextID int64
	now    func() time.Time
}

func newFakeClaimRepo(now func() time.Time) *fakeClaimRepo {
	return &fakeClaimRepo{claims: make(map[int64]*entity.Claim), now: now}
}

func (r *fakeClaimRepo) Create(ctx context.Context, claim *entity.Claim) error {
	r.nextID++
	claim.ID = r.nextID
	claim.CreatedAt = r.now()
	cp := *claim
	r.claims[claim.ID] = &cp
	return nil
}

func (r *fakeClaimRepo) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	stored, ok := r.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeClaimRepo) Update(ctx context.Context, claim *entity.Claim) error {
	cp := *claim
	r.claims[claim.ID] = &cp
	return nil
}

func (r *fakeClaimRepo) TransitionState(ctx context.Context, id int64, from, to workflow.State) error {
	stored, ok := r.claims[id]
	if !ok || stored.State != from {
		return faults.Conflict("claim %d is no longer in state %q", id, from)
	}
	stored.State = to
	return nil
}

func (r *fakeClaimRepo) List(ctx context.Context, limit, offset int) ([]*entity.Claim, error) {
	out := make([]*entity.Claim, 0, len(r.claims))
	for _, c := range r.claims {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeClaimRepo) ApprovedAmountsByMember(ctx context.Context, memberID int64) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, c := range r.claims {
		if c.MemberID == memberID && c.State == workflow.ClaimApproved {
			out = append(out, c.ApprovedAmount)
		}
	}
	return out, nil
}

func (r *fakeClaimRepo) CountCreatedSince(ctx context.Context, memberID int64, since time.Time) (int, error) {
	count := 0
	for _, c := range r.claims {
		if c.MemberID == memberID && c.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeClaimRepo) CountApprovedTriple(ctx context.Context, memberID, providerID, serviceID int64) (int, error) {
	count := 0
	for _, c := range r.claims {
		if c.MemberID == memberID && c.ProviderID == providerID && c.ServiceID == serviceID &&
			c.State == workflow.ClaimApproved {
			count++
		}
	}
	return count, nil
}

func (r *fakeClaimRepo) SumApprovedForMemberService(ctx context.Context, memberID, serviceID int64, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, c := range r.claims {
		if c.MemberID == memberID && c.ServiceID == serviceID && c.State == workflow.ClaimApproved {
			sum = sum.Add(c.ApprovedAmount)
		}
	}
	return sum, nil
}

func (r *fakeClaimRepo) TotalApprovedByMember(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range r.claims {
		if c.MemberID == memberID && c.State == workflow.ClaimApproved {
			total = total.Add(c.ApprovedAmount)
		}
	}
	return total, nil
}

func (r *fakeClaimRepo) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Claim, error) {
	var out []*entity.Claim
	for _, c := range r.claims {
		if c.State == workflow.ClaimSubmitted && !c.IsOverdue && c.SLADeadline != nil && now.After(*c.SLADeadline) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeClaimRepo) MarkOverdue(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if c, ok := r.claims[id]; ok {
			c.IsOverdue = true
		}
	}
	return nil
}

func (r *fakeClaimRepo) ListCessionCandidates(ctx context.Context, contractID int64, periodStart, periodEnd time.Time) ([]*entity.Claim, error) {
	var out []*entity.Claim
	for _, c := range r.claims {
		if c.State != workflow.ClaimApproved || c.PaymentState != entity.PaymentPaid {
			continue
		}
		if !c.ReinsurerShare.IsPositive() || c.BordereauLineID != nil {
			continue
		}
		if c.ReinsuranceContractID == nil || *c.ReinsuranceContractID != contractID {
			continue
		}
		if c.ApprovedDate == nil || c.ApprovedDate.Before(periodStart) || c.ApprovedDate.After(periodEnd) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeClaimRepo) LockToBordereauLine(ctx context.Context, claimID, lineID int64) error {
	stored, ok := r.claims[claimID]
	if !ok || stored.BordereauLineID != nil {
		return faults.Conflict("claim %d is already ceded", claimID)
	}
	stored.BordereauLineID = &lineID
	return nil
}

type fakeVoteRepo struct {
	votes []*entity.ClaimVote
}

func (r *fakeVoteRepo) Create(ctx context.Context, vote *entity.ClaimVote) error {
	for _, v := range r.votes {
		if v.ClaimID == vote.ClaimID && v.VoterID == vote.VoterID {
			return faults.Conflict("actor %s has already voted on claim %d", vote.VoterID, vote.ClaimID)
		}
	}
	vote.ID = int64(len(r.votes) + 1)
	cp := *vote
	r.votes = append(r.votes, &cp)
	return nil
}

func (r *fakeVoteRepo) Tally(ctx context.Context, claimID int64) (*entity.VoteTally, error) {
	tally := &entity.VoteTally{}
	for _, v := range r.votes {
		if v.ClaimID != claimID {
			continue
		}
		if v.Decision == entity.VoteApprove {
			tally.Approved++
		} else {
			tally.Rejected++
		}
	}
	return tally, nil
}

func (r *fakeVoteRepo) ListByClaim(ctx context.Context, claimID int64) ([]*entity.ClaimVote, error) {
	var out []*entity.ClaimVote
	for _, v := range r.votes {
		if v.ClaimID == claimID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeVoteRepo) HasVoted(ctx context.Context, claimID int64, voterID string) (bool, error) {
	for _, v := range r.votes {
		if v.ClaimID == claimID && v.VoterID == voterID {
			return true, nil
		}
	}
	return false, nil
}

type fakePolicyRepo struct {
	policies map[int64]*entity.Policy
	nextID   int64
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{policies: make(map[int64]*entity.Policy)}
}

func (r *fakePolicyRepo) Create(ctx context.Context, policy *entity.Policy) error {
	r.nextID++
	policy.ID = r.nextID
	cp := *policy
	r.policies[policy.ID] = &cp
	return nil
}

func (r *fakePolicyRepo) GetByID(ctx context.Context, id int64) (*entity.Policy, error) {
	stored, ok := r.policies[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakePolicyRepo) Update(ctx context.Context, policy *entity.Policy) error {
	cp := *policy
	r.policies[policy.ID] = &cp
	return nil
}

func (r *fakePolicyRepo) ListForStateSweep(ctx context.Context) ([]*entity.Policy, error) {
	var out []*entity.Policy
	for _, p := range r.policies {
		switch p.State {
		case workflow.PolicyActive, workflow.PolicyExpiring, workflow.PolicyRenewalQuoted:
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePolicyRepo) List(ctx context.Context, limit, offset int) ([]*entity.Policy, error) {
	var out []*entity.Policy
	for _, p := range r.policies {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type fakeMemberRepo struct {
	members map[int64]*entity.Member
	docs    map[int64][]*entity.MemberDocument
	nextID  int64
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{
		members: make(map[int64]*entity.Member),
		docs:    make(map[int64][]*entity.MemberDocument),
	}
}

func (r *fakeMemberRepo) Create(ctx context.Context, member *entity.Member) error {
	r.nextID++
	member.ID = r.nextID
	cp := *member
	r.members[member.ID] = &cp
	return nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, id int64) (*entity.Member, error) {
	stored, ok := r.members[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeMemberRepo) Update(ctx context.Context, member *entity.Member) error {
	cp := *member
	r.members[member.ID] = &cp
	return nil
}

func (r *fakeMemberRepo) ListByState(ctx context.Context, state workflow.State) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, m := range r.members {
		if m.State == state {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) AddDocument(ctx context.Context, doc *entity.MemberDocument) error {
	doc.ID = int64(len(r.docs[doc.MemberID]) + 1)
	cp := *doc
	r.docs[doc.MemberID] = append(r.docs[doc.MemberID], &cp)
	return nil
}

func (r *fakeMemberRepo) ListDocuments(ctx context.Context, memberID int64) ([]*entity.MemberDocument, error) {
	return r.docs[memberID], nil
}

func (r *fakeMemberRepo) VerifyDocument(ctx context.Context, docID int64, verifiedBy string, at time.Time) error {
	for _, docs := range r.docs {
		for _, d := range docs {
			if d.ID == docID {
				d.Verified = true
				d.VerifiedBy = verifiedBy
				d.VerifiedDate = &at
				return nil
			}
		}
	}
	return faults.Validation("document %d does not exist", docID)
}

type fakeBordereauRepo struct {
	bordereaux map[int64]*entity.Bordereau
	lines      map[int64][]*entity.BordereauLine
	nextID     int64
	lineID     int64
}

func newFakeBordereauRepo() *fakeBordereauRepo {
	return &fakeBordereauRepo{
		bordereaux: make(map[int64]*entity.Bordereau),
		lines:      make(map[int64][]*entity.BordereauLine),
	}
}

func (r *fakeBordereauRepo) Create(ctx context.Context, b *entity.Bordereau) error {
	r.nextID++
	b.ID = r.nextID
	cp := *b
	r.bordereaux[b.ID] = &cp
	return nil
}

func (r *fakeBordereauRepo) GetByID(ctx context.Context, id int64) (*entity.Bordereau, error) {
	stored, ok := r.bordereaux[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeBordereauRepo) UpdateState(ctx context.Context, id int64, state workflow.State) error {
	stored, ok := r.bordereaux[id]
	if !ok {
		return faults.Validation("bordereau %d does not exist", id)
	}
	stored.State = state
	return nil
}

func (r *fakeBordereauRepo) UpdateTotals(ctx context.Context, id int64, total decimal.Decimal, count int) error {
	stored, ok := r.bordereaux[id]
	if !ok {
		return faults.Validation("bordereau %d does not exist", id)
	}
	stored.TotalReinsurerShare = total
	stored.TotalClaims = count
	return nil
}

func (r *fakeBordereauRepo) AttachToSettlement(ctx context.Context, id, settlementID int64) error {
	stored, ok := r.bordereaux[id]
	if !ok {
		return faults.Validation("bordereau %d does not exist", id)
	}
	if stored.SettlementID != nil {
		return faults.Conflict("bordereau %d already belongs to a settlement", id)
	}
	stored.SettlementID = &settlementID
	return nil
}

func (r *fakeBordereauRepo) ListBySettlement(ctx context.Context, settlementID int64) ([]*entity.Bordereau, error) {
	var out []*entity.Bordereau
	for _, b := range r.bordereaux {
		if b.SettlementID != nil && *b.SettlementID == settlementID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBordereauRepo) AddLine(ctx context.Context, line *entity.BordereauLine) error {
	r.lineID++
	line.ID = r.lineID
	cp := *line
	r.lines[line.BordereauID] = append(r.lines[line.BordereauID], &cp)
	return nil
}

func (r *fakeBordereauRepo) ListLines(ctx context.Context, bordereauID int64) ([]*entity.BordereauLine, error) {
	return r.lines[bordereauID], nil
}

type fakeSettlementRepo struct {
	settlements map[int64]*entity.Settlement
	nextID      int64
}

func newFakeSettlementRepo() *fakeSettlementRepo {
	return &fakeSettlementRepo{settlements: make(map[int64]*entity.Settlement)}
}

func (r *fakeSettlementRepo) Create(ctx context.Context, s *entity.Settlement) error {
	r.nextID++
	s.ID = r.nextID
	cp := *s
	r.settlements[s.ID] = &cp
	return nil
}

func (r *fakeSettlementRepo) GetByID(ctx context.Context, id int64) (*entity.Settlement, error) {
	stored, ok := r.settlements[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeSettlementRepo) Update(ctx context.Context, s *entity.Settlement) error {
	cp := *s
	r.settlements[s.ID] = &cp
	return nil
}

type fakeExporter struct {
	exported []int64
}

func (e *fakeExporter) Export(b *entity.Bordereau, contract *entity.ReinsuranceContract, lines []*entity.BordereauLine) (string, error) {
	e.exported = append(e.exported, b.ID)
	return fmt.Sprintf("/tmp/%s.xlsx", b.Number), nil
}

type fakeCoverageRepo struct {
	templates map[int64]*entity.CoverageTemplate
	lines     map[int64]*entity.CoverageLine
	nextID    int64
}

func newFakeCoverageRepo() *fakeCoverageRepo {
	return &fakeCoverageRepo{
		templates: make(map[int64]*entity.CoverageTemplate),
		lines:     make(map[int64]*entity.CoverageLine),
	}
}

func (r *fakeCoverageRepo) CreateTemplate(ctx context.Context, tpl *entity.CoverageTemplate) error {
	r.nextID++
	tpl.ID = r.nextID
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *fakeCoverageRepo) GetTemplate(ctx context.Context, id int64) (*entity.CoverageTemplate, error) {
	stored, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeCoverageRepo) CreateLine(ctx context.Context, line *entity.CoverageLine) error {
	r.nextID++
	line.ID = r.nextID
	cp := *line
	r.lines[line.ID] = &cp
	return nil
}

func (r *fakeCoverageRepo) FindCoveredLine(ctx context.Context, templateID, serviceID int64) (*entity.CoverageLine, error) {
	for _, l := range r.lines {
		if l.TemplateID == templateID && l.ServiceID == serviceID && l.Covered {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCoverageRepo) ListLines(ctx context.Context, templateID int64) ([]*entity.CoverageLine, error) {
	var out []*entity.CoverageLine
	for _, l := range r.lines {
		if l.TemplateID == templateID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCoverageRepo) UpdateUsage(ctx context.Context, lineID int64, used decimal.Decimal) error {
	line, ok := r.lines[lineID]
	if !ok {
		return faults.Validation("coverage line %d does not exist", lineID)
	}
	line.UsedAmount = used
	return nil
}

func (r *fakeCoverageRepo) ListAllLines(ctx context.Context) ([]*entity.CoverageLine, error) {
	var out []*entity.CoverageLine
	for _, l := range r.lines {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeCoverageRepo) ResetUsage(ctx context.Context, lineID int64, year int) error {
	line, ok := r.lines[lineID]
	if !ok {
		return nil
	}
	if line.LastResetYear < year {
		line.UsedAmount = decimal.Zero
		line.LastResetYear = year
	}
	return nil
}

type fakeReinsuranceRepo struct {
	contracts map[int64]*entity.ReinsuranceContract
	nextID    int64
}

func newFakeReinsuranceRepo() *fakeReinsuranceRepo {
	return &fakeReinsuranceRepo{contracts: make(map[int64]*entity.ReinsuranceContract)}
}

func (r *fakeReinsuranceRepo) CreateContract(ctx context.Context, contract *entity.ReinsuranceContract) error {
	r.nextID++
	contract.ID = r.nextID
	cp := *contract
	r.contracts[contract.ID] = &cp
	return nil
}

func (r *fakeReinsuranceRepo) GetContract(ctx context.Context, id int64) (*entity.ReinsuranceContract, error) {
	stored, ok := r.contracts[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeReinsuranceRepo) FindActiveForPolicy(ctx context.Context, policyID int64, on time.Time) (*entity.ReinsuranceContract, error) {
	for _, c := range r.contracts {
		if c.PolicyID == policyID && c.Active && c.Covers(on) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeProviderRepo struct {
	providers map[int64]*entity.Provider
	services  map[int64]*entity.Service
}

func newFakeProviderRepo() *fakeProviderRepo {
	return &fakeProviderRepo{
		providers: make(map[int64]*entity.Provider),
		services:  make(map[int64]*entity.Service),
	}
}

func (r *fakeProviderRepo) GetProvider(ctx context.Context, id int64) (*entity.Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProviderRepo) GetService(ctx context.Context, id int64) (*entity.Service, error) {
	s, ok := r.services[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type posting struct {
	moveType  string
	payeeType string
	payeeRef  string
	lines     []port.LedgerLine
}

type fakeLedger struct {
	postings  []posting
	reversals []string
	failPost  error
	nextID    int
}

func (l *fakeLedger) PostEntry(ctx context.Context, moveType, payeeType, payeeRef string, lines []port.LedgerLine) (string, error) {
	if l.failPost != nil {
		return "", l.failPost
	}
	l.postings = append(l.postings, posting{moveType: moveType, payeeType: payeeType, payeeRef: payeeRef, lines: lines})
	l.nextID++
	return fmt.Sprintf("JE-%d", l.nextID), nil
}

func (l *fakeLedger) ReverseEntry(ctx context.Context, entryID, reason string) (string, error) {
	l.reversals = append(l.reversals, entryID)
	return entryID + "-REV", nil
}

func (l *fakeLedger) Preflight(ctx context.Context, payeeType, payeeRef string) error {
	return l.failPost
}

type reviewTask struct {
	assignee string
	entityID int64
	note     string
	closed   bool
}

type fakeTasks struct {
	tasks []*reviewTask
}

func (t *fakeTasks) AssignReviewTask(ctx context.Context, assignee, entityType string, entityID int64, subject, note string) error {
	t.tasks = append(t.tasks, &reviewTask{assignee: assignee, entityID: entityID, note: note})
	return nil
}

func (t *fakeTasks) CloseTasks(ctx context.Context, entityType string, entityID int64) error {
	for _, task := range t.tasks {
		if task.entityID == entityID {
			task.closed = true
		}
	}
	return nil
}

func (t *fakeTasks) open(entityID int64) []*reviewTask {
	var out []*reviewTask
	for _, task := range t.tasks {
		if task.entityID == entityID && !task.closed {
			out = append(out, task)
		}
	}
	return out
}

type fakeSeq struct {
	counts map[string]int
}

func (s *fakeSeq) Next(ctx context.Context, key string) (string, error) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[key]++
	return fmt.Sprintf("%s-%05d", key, s.counts[key]), nil
}

type fakeDocs struct {
	counts map[int64]int
}

func (d *fakeDocs) CountAttachments(ctx context.Context, entityType string, entityID int64) (int, error) {
	return d.counts[entityID], nil
}

type fakeAuth struct {
	roles map[string][]string // actor -> roles
}

func (a *fakeAuth) HasRole(ctx context.Context, actorID, role string) (bool, error) {
	for _, r := range a.roles[actorID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (a *fakeAuth) ListMembers(ctx context.Context, role string) ([]string, error) {
	var out []string
	for actor, roles := range a.roles {
		for _, r := range roles {
			if r == role {
				out = append(out, actor)
			}
		}
	}
	return out, nil
}

type auditLine struct {
	entityType string
	entityID   int64
	actor      string
	body       string
}

type fakeAudit struct {
	entries []auditLine
}

func (a *fakeAudit) Append(ctx context.Context, entityType string, entityID int64, actorID, body string) error {
	a.entries = append(a.entries, auditLine{entityType: entityType, entityID: entityID, actor: actorID, body: body})
	return nil
}

func (a *fakeAudit) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error) {
	var out []*entity.AuditEntry
	for _, e := range a.entries {
		if e.entityType == entityType && e.entityID == entityID {
			out = append(out, &entity.AuditEntry{
				EntityType: e.entityType,
				EntityID:   e.entityID,
				ActorID:    e.actor,
				Body:       e.body,
			})
		}
	}
	return out, nil
}

// testEnv wires a ClaimService over the fakes with one seeded policy,
// member, provider, service, coverage line and reinsurance contract.
type testEnv struct {
	now time.Time

	claims      *fakeClaimRepo
	votes       *fakeVoteRepo
	policies    *fakePolicyRepo
	members     *fakeMemberRepo
	coverage    *fakeCoverageRepo
	reinsurance *fakeReinsuranceRepo
	providers   *fakeProviderRepo
	ledger      *fakeLedger
	tasks       *fakeTasks
	docs        *fakeDocs
	auth        *fakeAuth
	audit       *fakeAudit

	svc       *ClaimService
	committee *CommitteeService

	policy   *entity.Policy
	member   *entity.Member
	line     *entity.CoverageLine
	contract *entity.ReinsuranceContract
}

func newTestEnv() *testEnv {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	env := &testEnv{
		now:         now,
		claims:      newFakeClaimRepo(clock),
		votes:       &fakeVoteRepo{},
		policies:    newFakePolicyRepo(),
		members:     newFakeMemberRepo(),
		coverage:    newFakeCoverageRepo(),
		reinsurance: newFakeReinsuranceRepo(),
		providers:   newFakeProviderRepo(),
		ledger:      &fakeLedger{},
		tasks:       &fakeTasks{},
		docs:        &fakeDocs{counts: make(map[int64]int)},
		auth: &fakeAuth{roles: map[string][]string{
			"mia":   {port.RoleManager},
			"greta": {port.RoleGM},
			"alice": {port.RoleCommittee},
			"bob":   {port.RoleCommittee},
			"cleo":  {port.RoleCommittee},
		}},
		audit: &fakeAudit{},
	}

	logger := zap.NewNop()
	env.svc = NewClaimService(ClaimServiceDeps{
		Tx:                    fakeTx{},
		Claims:                env.claims,
		Policies:              env.policies,
		Members:               env.members,
		Coverage:              env.coverage,
		Reinsurance:           env.reinsurance,
		Providers:             env.providers,
		Ledger:                env.ledger,
		Tasks:                 env.tasks,
		Sequences:             &fakeSeq{},
		Documents:             env.docs,
		Authority:             env.auth,
		Audit:                 env.audit,
		FraudEvaluator:        fraud.NewEvaluator(env.claims).WithClock(clock),
		DefaultExpenseAccount: "600100",
		CommitteeQuorum:       2,
		Logger:                logger,
	}).WithClock(clock)
	env.committee = NewCommitteeService(fakeTx{}, env.claims, env.votes, env.auth, env.audit, env.svc, logger)

	ctx := context.Background()

	tpl := &entity.CoverageTemplate{Name: "Standard", Active: true}
	env.coverage.CreateTemplate(ctx, tpl)

	env.policy = &entity.Policy{
		Number:               "POL-2026-00001",
		Name:                 "Acme Group",
		CoverageTemplateID:   tpl.ID,
		AnnualLimit:          decimal.NewFromInt(10000),
		ManagerApprovalLimit: decimal.NewFromInt(1000),
		StartDate:            now.AddDate(0, -6, 0),
		EndDate:              now.AddDate(0, 6, 0),
		State:                workflow.PolicyActive,
	}
	env.policies.Create(ctx, env.policy)

	env.member = &entity.Member{
		Number:     "MBR-2026-00001",
		Name:       "Jordan Doe",
		PolicyID:   env.policy.ID,
		PartnerRef: "PARTNER-MBR-1",
		State:      workflow.MemberActive,
	}
	env.members.Create(ctx, env.member)

	env.providers.providers[1] = &entity.Provider{ID: 1, Name: "City Clinic", Active: true, PartnerRef: "PARTNER-PRV-1"}
	env.providers.services[1] = &entity.Service{ID: 1, Code: "LAB", Name: "Laboratory", Active: true}

	env.line = &entity.CoverageLine{
		TemplateID:  tpl.ID,
		ServiceID:   1,
		Covered:     true,
		AnnualLimit: decimal.NewFromInt(5000),
	}
	env.coverage.CreateLine(ctx, env.line)

	env.contract = &entity.ReinsuranceContract{
		Name:            "StopLoss 2026",
		Active:          true,
		PolicyID:        env.policy.ID,
		ReinsurerRef:    "RE-1",
		RetentionAmount: decimal.NewFromInt(300),
		StartDate:       now.AddDate(0, -6, 0),
		EndDate:         now.AddDate(0, 6, 0),
	}
	env.reinsurance.CreateContract(ctx, env.contract)

	return env
}

// newClaim creates a draft claim with one attachment, ready to submit
func (env *testEnv) newClaim(t interface{ Fatalf(string, ...interface{}) }, amount int64, createdBy string) *entity.Claim {
	claim, err := env.svc.Create(context.Background(), CreateClaimInput{
		MemberID:      env.member.ID,
		ProviderID:    1,
		ServiceID:     1,
		ClaimedAmount: decimal.NewFromInt(amount),
		CreatedBy:     createdBy,
	})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	env.docs.counts[claim.ID] = 1
	return claim
}

// submittedClaim creates and submits a claim
func (env *testEnv) submittedClaim(t interface{ Fatalf(string, ...interface{}) }, amount int64, createdBy string) *entity.Claim {
	claim := env.newClaim(t, amount, createdBy)
	submitted, err := env.svc.Submit(context.Background(), claim.ID, createdBy)
	if err != nil {
		t.Fatalf("submit claim: %v", err)
	}
	return submitted
}
