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
)

// requiredDocumentTypes must all be attached and verified before a member
// can be approved
var requiredDocumentTypes = []string{entity.DocumentID, entity.DocumentApplication}

// CreateMemberInput carries the fields to enroll a member
type CreateMemberInput struct {
	Name       string
	PolicyID   int64
	PartnerRef string
}

// MemberService drives member onboarding: enrollment, document collection
// and verification, approval and activation.
type MemberService struct {
	tx       port.TransactionManager
	members  port.MemberRepository
	policies port.PolicyRepository
	seq      port.SequenceGenerator
	auth     port.AuthorityChecker
	audit    port.AuditLog

	logger *zap.Logger
	now    func() time.Time
}

// NewMemberService creates a new member service
func NewMemberService(tx port.TransactionManager, members port.MemberRepository, policies port.PolicyRepository,
	seq port.SequenceGenerator, auth port.AuthorityChecker, audit port.AuditLog, logger *zap.Logger) *MemberService {
	return &MemberService{
		tx:       tx,
		members:  members,
		policies: policies,
		seq:      seq,
		auth:     auth,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Create enrolls a draft member on a policy
func (s *MemberService) Create(ctx context.Context, in CreateMemberInput) (*entity.Member, error) {
	var member *entity.Member
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		policy, err := s.policies.GetByID(ctx, in.PolicyID)
		if err != nil {
			return err
		}
		if policy == nil {
			return faults.Validation("policy %d does not exist", in.PolicyID)
		}
		if workflow.IsPolicyTerminal(policy.State) {
			return faults.Validation("policy %s can no longer enroll members", policy.Number)
		}

		number, err := s.seq.Next(ctx, port.SeqMember)
		if err != nil {
			return err
		}

		member = &entity.Member{
			Number:               number,
			Name:                 in.Name,
			PolicyID:             policy.ID,
			PartnerRef:           in.PartnerRef,
			TotalClaimed:         decimal.Zero,
			RemainingAnnualLimit: policy.AnnualLimit,
			UtilizationPercent:   decimal.Zero,
			State:                workflow.MemberDraft,
		}
		if err := s.members.Create(ctx, member); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditMember, member.ID, "",
			fmt.Sprintf("Member %s enrolled on policy %s.", number, policy.Number))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Member enrolled", zap.String("number", member.Number))
	return member, nil
}

// RequestDocuments moves a draft member to the document collection stage
func (s *MemberService) RequestDocuments(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	return s.transition(ctx, memberID, actor, workflow.TriggerRequestDocuments,
		workflow.MemberPendingDocuments, "Underwriting documents requested.")
}

// AddDocument attaches an underwriting document to a member under review
func (s *MemberService) AddDocument(ctx context.Context, memberID int64, docType, attachmentRef string) (*entity.MemberDocument, error) {
	valid := map[string]bool{
		entity.DocumentID:          true,
		entity.DocumentApplication: true,
		entity.DocumentMedical:     true,
		entity.DocumentAddress:     true,
		entity.DocumentLab:         true,
	}
	if !valid[docType] {
		return nil, faults.Validation("unknown document type %q", docType)
	}

	var doc *entity.MemberDocument
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		member, err := s.mustGet(ctx, memberID)
		if err != nil {
			return err
		}
		if member.State != workflow.MemberPendingDocuments {
			return faults.Validation("member %s is not collecting documents", member.Number)
		}

		doc = &entity.MemberDocument{
			MemberID:      memberID,
			DocumentType:  docType,
			AttachmentRef: attachmentRef,
		}
		return s.members.AddDocument(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// VerifyDocument marks a document verified. Requires the underwriter role.
func (s *MemberService) VerifyDocument(ctx context.Context, memberID, docID int64, actor string) error {
	ok, err := s.auth.HasRole(ctx, actor, port.RoleUnderwriter)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Authorization("actor %s does not hold the underwriter role", actor)
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.members.VerifyDocument(ctx, docID, actor, s.now()); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditMember, memberID, actor,
			fmt.Sprintf("Document %d verified.", docID))
	})
}

// Approve approves a member once every required document type is attached
// and verified
func (s *MemberService) Approve(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	var member *entity.Member
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		member, err = s.mustGet(ctx, memberID)
		if err != nil {
			return err
		}

		machine := workflow.NewMemberMachine(member.State)
		if !machine.CanFire(workflow.TriggerApproveMember) {
			return faults.Validation("member %s cannot be approved from state %q", member.Number, member.State)
		}

		docs, err := s.members.ListDocuments(ctx, memberID)
		if err != nil {
			return err
		}
		verified := make(map[string]bool)
		for _, doc := range docs {
			if doc.Verified {
				verified[doc.DocumentType] = true
			}
		}
		for _, required := range requiredDocumentTypes {
			if !verified[required] {
				return faults.Validation("member %s is missing a verified %s document", member.Number, required)
			}
		}

		member.State = workflow.MemberApproved
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditMember, member.ID, actor, "Member approved.")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Member approved", zap.String("number", member.Number))
	return member, nil
}

// Activate makes an approved member claim-eligible
func (s *MemberService) Activate(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	return s.transition(ctx, memberID, actor, workflow.TriggerActivateMember,
		workflow.MemberActive, "Member activated.")
}

// Suspend suspends an active member
func (s *MemberService) Suspend(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	return s.transition(ctx, memberID, actor, workflow.TriggerSuspend,
		workflow.MemberSuspended, "Member suspended.")
}

// Reinstate reinstates a suspended member
func (s *MemberService) Reinstate(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	return s.transition(ctx, memberID, actor, workflow.TriggerReinstate,
		workflow.MemberActive, "Member reinstated.")
}

// Terminate ends the member's cover
func (s *MemberService) Terminate(ctx context.Context, memberID int64, actor string) (*entity.Member, error) {
	return s.transition(ctx, memberID, actor, workflow.TriggerTerminate,
		workflow.MemberTerminated, "Member terminated.")
}

// Get returns a member with its documents
func (s *MemberService) Get(ctx context.Context, memberID int64) (*entity.Member, []*entity.MemberDocument, error) {
	member, err := s.mustGet(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.members.ListDocuments(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	return member, docs, nil
}

func (s *MemberService) transition(ctx context.Context, memberID int64, actor string,
	trigger workflow.Trigger, to workflow.State, auditBody string) (*entity.Member, error) {
	var member *entity.Member
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		member, err = s.mustGet(ctx, memberID)
		if err != nil {
			return err
		}

		machine := workflow.NewMemberMachine(member.State)
		if !machine.CanFire(trigger) {
			return faults.Validation("member %s cannot move from state %q", member.Number, member.State)
		}

		member.State = to
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditMember, member.ID, actor, auditBody)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Member state changed",
		zap.String("number", member.Number), zap.String("state", string(member.State)))
	return member, nil
}

func (s *MemberService) mustGet(ctx context.Context, id int64) (*entity.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, faults.Validation("member %d does not exist", id)
	}
	return member, nil
}
