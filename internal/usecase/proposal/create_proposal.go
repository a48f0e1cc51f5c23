package proposal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

type CreateProposalInput struct {
	Title             string
	Description       string
	Milestones        []entity.MilestoneSpec
	TotalAmount       decimal.Decimal
	FeeSplit          int
	CreatorRole       string
	CounterpartyEmail string
}

type CreateProposalUseCase struct {
	proposalRepo repository.ProposalRepository
	notifier     gateway.Notifier
	now          func() time.Time
}

func NewCreateProposalUseCase(proposalRepo repository.ProposalRepository, notifier gateway.Notifier) *CreateProposalUseCase {
	return &CreateProposalUseCase{
		proposalRepo: proposalRepo,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (uc *CreateProposalUseCase) Execute(ctx context.Context, input CreateProposalInput, creator entity.Actor) (*entity.Proposal, error) {
	proposal, err := entity.NewProposal(entity.ProposalDraft{
		Title:             input.Title,
		Description:       input.Description,
		Milestones:        input.Milestones,
		TotalAmount:       input.TotalAmount,
		FeeSplit:          input.FeeSplit,
		CreatorRole:       input.CreatorRole,
		Creator:           creator,
		CounterpartyEmail: input.CounterpartyEmail,
	}, uc.now())
	if err != nil {
		return nil, err
	}

	if err := uc.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать предложение")
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id":  proposal.ID,
		"creator_role": proposal.CreatorRole,
		"total":        proposal.TotalAmount.StringFixed(2),
	}).Info("предложение создано")

	shared.Notify(ctx, uc.notifier, gateway.Notification{
		RecipientEmail: proposal.CounterpartyEmail(),
		Kind:           gateway.NotifyProposalReceived,
		Context: map[string]any{
			"proposal_id": proposal.ID.String(),
			"title":       proposal.Title,
			"total":       proposal.TotalAmount.StringFixed(2),
			"from":        proposal.CreatorEmail(),
		},
	})

	return proposal, nil
}
