package proposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

// DealCreator создаёт сделку из принятого предложения.
type DealCreator interface {
	FromProposal(ctx context.Context, proposal *entity.Proposal) (*entity.Deal, error)
}

// FundingInitiator запускает оплату сделки покупателем.
type FundingInitiator interface {
	Execute(ctx context.Context, dealID uuid.UUID, actor entity.Actor) (*deal.FundingResult, error)
}

type UpdateStatusResult struct {
	Proposal *entity.Proposal
	Deal     *entity.Deal
	Funding  *deal.FundingResult
}

type UpdateProposalStatusUseCase struct {
	proposalRepo repository.ProposalRepository
	deals        DealCreator
	funding      FundingInitiator
	kyc          gateway.IdentityVerifier
	notifier     gateway.Notifier
	timeout      time.Duration
	now          func() time.Time
}

func NewUpdateProposalStatusUseCase(
	proposalRepo repository.ProposalRepository,
	deals DealCreator,
	funding FundingInitiator,
	kyc gateway.IdentityVerifier,
	notifier gateway.Notifier,
	timeout time.Duration,
) *UpdateProposalStatusUseCase {
	if timeout <= 0 {
		timeout = shared.DefaultExternalTimeout
	}
	return &UpdateProposalStatusUseCase{
		proposalRepo: proposalRepo,
		deals:        deals,
		funding:      funding,
		kyc:          kyc,
		notifier:     notifier,
		timeout:      timeout,
		now:          time.Now,
	}
}

func (uc *UpdateProposalStatusUseCase) Execute(ctx context.Context, proposalID uuid.UUID, newStatus string, actor entity.Actor) (*UpdateStatusResult, error) {
	status, err := valueobject.NewProposalStatus(newStatus)
	if err != nil {
		return nil, err
	}

	proposal, err := uc.proposalRepo.FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	switch status {
	case valueobject.ProposalStatusAccepted:
		return uc.accept(ctx, proposal, actor)
	case valueobject.ProposalStatusDeclined:
		return uc.decline(ctx, proposal, actor)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "предложение можно только принять или отклонить")
	}
}

func (uc *UpdateProposalStatusUseCase) decline(ctx context.Context, proposal *entity.Proposal, actor entity.Actor) (*UpdateStatusResult, error) {
	if !proposal.IsCounterparty(actor) {
		return nil, apperror.ErrForbidden
	}

	expected := proposal.Status
	if err := proposal.Decline(uc.now()); err != nil {
		return nil, err
	}
	if err := uc.proposalRepo.Update(ctx, proposal, expected); err != nil {
		return nil, err
	}

	shared.Notify(ctx, uc.notifier, gateway.Notification{
		RecipientEmail: proposal.CreatorEmail(),
		RecipientID:    proposal.CreatorID(),
		Kind:           gateway.NotifyProposalDeclined,
		Context: map[string]any{
			"proposal_id": proposal.ID.String(),
			"title":       proposal.Title,
		},
	})

	return &UpdateStatusResult{Proposal: proposal}, nil
}

func (uc *UpdateProposalStatusUseCase) accept(ctx context.Context, proposal *entity.Proposal, actor entity.Actor) (*UpdateStatusResult, error) {
	// Принятое, но не конвертированное предложение: повторный вызов
	// дожимает создание сделки.
	if proposal.IsAccepted() {
		if !proposal.IsParticipant(actor) {
			return nil, apperror.ErrForbidden
		}
		return uc.convert(ctx, proposal, actor)
	}

	if !proposal.IsCounterparty(actor) {
		return nil, apperror.ErrForbidden
	}
	if !proposal.Status.IsOpen() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "принять можно только ожидающее предложение")
	}

	sellerInitiated := proposal.CreatorRole == valueobject.RoleSeller
	if sellerInitiated {
		if err := shared.RequireKYC(ctx, uc.kyc, actor.UserID, uc.timeout); err != nil {
			return nil, err
		}
	}

	expected := proposal.Status
	if err := proposal.Accept(actor, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.proposalRepo.Update(ctx, proposal, expected); err != nil {
		return nil, err
	}

	shared.Notify(ctx, uc.notifier, gateway.Notification{
		RecipientEmail: proposal.CreatorEmail(),
		RecipientID:    proposal.CreatorID(),
		Kind:           gateway.NotifyProposalAccepted,
		Context: map[string]any{
			"proposal_id": proposal.ID.String(),
			"title":       proposal.Title,
		},
	})

	return uc.convert(ctx, proposal, actor)
}

func (uc *UpdateProposalStatusUseCase) convert(ctx context.Context, proposal *entity.Proposal, actor entity.Actor) (*UpdateStatusResult, error) {
	created, err := uc.deals.FromProposal(ctx, proposal)
	if err != nil {
		return nil, err
	}

	if err := proposal.MarkConverted(created.ID, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.proposalRepo.Update(ctx, proposal, valueobject.ProposalStatusAccepted); err != nil {
		return nil, err
	}

	result := &UpdateStatusResult{Proposal: proposal, Deal: created}

	// Покупатель, принявший предложение продавца, сразу переходит к оплате.
	if proposal.CreatorRole == valueobject.RoleSeller && actor.UserID == created.BuyerID && uc.funding != nil {
		funding, err := uc.funding.Execute(ctx, created.ID, actor)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"deal_id":     created.ID,
				"proposal_id": proposal.ID,
			}).WithError(err).Warn("не удалось инициировать оплату, сделка ждёт финансирования")
		} else {
			result.Funding = funding
		}
	}

	return result, nil
}
