package deal

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

// Factory превращает принятое предложение в сделку.
type Factory struct {
	dealRepo repository.DealRepository
	notifier gateway.Notifier
	now      func() time.Time
}

func NewFactory(dealRepo repository.DealRepository, notifier gateway.Notifier) *Factory {
	return &Factory{dealRepo: dealRepo, notifier: notifier, now: time.Now}
}

// FromProposal идемпотентен: для уже конвертированного предложения
// возвращается существующая сделка.
func (f *Factory) FromProposal(ctx context.Context, proposal *entity.Proposal) (*entity.Deal, error) {
	existing, err := f.dealRepo.FindByProposalID(ctx, proposal.ID)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	deal, err := entity.NewDealFromProposal(proposal, f.now())
	if err != nil {
		return nil, err
	}

	if err := f.dealRepo.Create(ctx, deal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать сделку")
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id":     deal.ID,
		"proposal_id": proposal.ID,
		"milestones":  len(deal.Milestones),
	}).Info("сделка создана")

	shared.Notify(ctx, f.notifier, gateway.Notification{
		RecipientEmail: deal.BuyerEmail,
		RecipientID:    deal.BuyerID,
		Kind:           gateway.NotifyFundDeal,
		Context: map[string]any{
			"deal_id":        deal.ID.String(),
			"title":          deal.Title,
			"funding_amount": deal.FundingAmount().StringFixed(2),
		},
	})

	return deal, nil
}
