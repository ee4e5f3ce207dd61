package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// ScopeInput описывает работу в том виде, в каком её присылает покупатель.
type ScopeInput struct {
	Title        string            `json:"title" validate:"required,max=200"`
	Description  string            `json:"description" validate:"required,max=5000"`
	Deliverables []string          `json:"deliverables" validate:"required,min=1,max=50,dive,required"`
	Deadline     time.Time         `json:"deadline" validate:"required"`
	Price        string            `json:"price" validate:"required,numeric"`
	Currency     string            `json:"currency" validate:"omitempty,iso4217"`
	Extra        map[string]string `json:"extra" validate:"omitempty,max=20"`
}

type ContactInput struct {
	BuyerName         string `json:"buyer_name" validate:"max=200"`
	BuyerEmail        string `json:"buyer_email" validate:"omitempty,email"`
	Platform          string `json:"platform" validate:"max=100"`
	ProductLink       string `json:"product_link"`
	Country           string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Currency          string `json:"currency" validate:"omitempty,iso4217"`
	SellerContact     string `json:"seller_contact" validate:"max=200"`
	EscrowLink        string `json:"escrow_link"`
	OrderTrackingLink string `json:"order_tracking_link"`
}

type CreateOrderInput struct {
	Actor    entity.Actor `json:"-"`
	SellerID uuid.UUID    `json:"seller_id" validate:"required"`
	Scope    ScopeInput   `json:"scope"`
	Contact  ContactInput `json:"contact"`
}

type CreateOrderUseCase struct {
	orderRepo repository.OrderRepository
	directory repository.ActorDirectory
}

func NewCreateOrderUseCase(orderRepo repository.OrderRepository, directory repository.ActorDirectory) *CreateOrderUseCase {
	return &CreateOrderUseCase{orderRepo: orderRepo, directory: directory}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, input CreateOrderInput) (*entity.Order, error) {
	if input.Actor.Role != valueobject.RoleBuyer {
		return nil, apperror.ErrActorNotAuthorized
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	role, err := uc.directory.ResolveRole(ctx, input.SellerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.New(apperror.ErrCodeValidation, "продавец не найден")
		}
		return nil, err
	}
	if role != valueobject.RoleSeller {
		return nil, apperror.New(apperror.ErrCodeValidation, "указанный участник не является продавцом")
	}

	scope, err := input.Scope.toEntity()
	if err != nil {
		return nil, err
	}
	contact, err := input.Contact.toEntity()
	if err != nil {
		return nil, err
	}

	order, err := entity.NewOrder(input.Actor.ID, input.SellerID, scope, contact, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := uc.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

func (in ScopeInput) toEntity() (entity.ScopeBox, error) {
	if err := validation.ValidateOrderTitle(in.Title); err != nil {
		return entity.ScopeBox{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateOrderDescription(in.Description); err != nil {
		return entity.ScopeBox{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDeliverables(in.Deliverables); err != nil {
		return entity.ScopeBox{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	price, err := valueobject.NewPrice(in.Price, in.Currency)
	if err != nil {
		return entity.ScopeBox{}, err
	}

	deliverables := make([]string, 0, len(in.Deliverables))
	for _, d := range in.Deliverables {
		deliverables = append(deliverables, strings.TrimSpace(d))
	}
	return entity.ScopeBox{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Deliverables: deliverables,
		Deadline:     in.Deadline.UTC(),
		Price:        price,
		Extra:        in.Extra,
	}, nil
}

func (in ContactInput) toEntity() (entity.ContactInfo, error) {
	links := []struct{ name, value string }{
		{"ссылка на товар", in.ProductLink},
		{"ссылка на escrow", in.EscrowLink},
		{"ссылка отслеживания", in.OrderTrackingLink},
	}
	for _, l := range links {
		if err := validation.ValidateExternalLink(l.name, l.value); err != nil {
			return entity.ContactInfo{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	return entity.ContactInfo{
		BuyerName:         strings.TrimSpace(in.BuyerName),
		BuyerEmail:        strings.ToLower(strings.TrimSpace(in.BuyerEmail)),
		Platform:          in.Platform,
		ProductLink:       in.ProductLink,
		Country:           in.Country,
		Currency:          strings.ToUpper(in.Currency),
		SellerContact:     in.SellerContact,
		EscrowLink:        in.EscrowLink,
		OrderTrackingLink: in.OrderTrackingLink,
	}, nil
}
