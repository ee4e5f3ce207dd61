package valueobject

import "github.com/ignatzorin/escrow-backend/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPlaced           OrderStatus = "PLACED"
	OrderStatusEscrowFunded     OrderStatus = "ESCROW_FUNDED"
	OrderStatusAccepted         OrderStatus = "ACCEPTED"
	OrderStatusRejected         OrderStatus = "REJECTED"
	OrderStatusChangesRequested OrderStatus = "CHANGES_REQUESTED"
	OrderStatusInProgress       OrderStatus = "IN_PROGRESS"
	OrderStatusSubmitted        OrderStatus = "SUBMITTED"
	OrderStatusApproved         OrderStatus = "APPROVED"
	OrderStatusDisputed         OrderStatus = "DISPUTED"
	OrderStatusReleased         OrderStatus = "RELEASED"
	OrderStatusRefunded         OrderStatus = "REFUNDED"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// AllOrderStatuses перечисляет весь словарь статусов в порядке жизненного цикла.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusEscrowFunded,
	OrderStatusAccepted,
	OrderStatusRejected,
	OrderStatusChangesRequested,
	OrderStatusInProgress,
	OrderStatusSubmitted,
	OrderStatusApproved,
	OrderStatusDisputed,
	OrderStatusReleased,
	OrderStatusRefunded,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет ни одного перехода.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusReleased, OrderStatusRefunded, OrderStatusCancelled, OrderStatusRejected, OrderStatusCompleted:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "некорректный статус заказа: %q", status)
	}
	return s, nil
}

// OrderAction обозначает действие участника над заказом.
type OrderAction string

const (
	ActionFundEscrow     OrderAction = "fund_escrow"
	ActionAccept         OrderAction = "accept"
	ActionReject         OrderAction = "reject"
	ActionRequestChanges OrderAction = "request_changes"
	ActionBuyerRevises   OrderAction = "buyer_revises"
	ActionSubmit         OrderAction = "submit"
	ActionApprove        OrderAction = "approve"
	ActionRelease        OrderAction = "release"
	ActionRaiseDispute   OrderAction = "raise_dispute"
	ActionResolveDispute OrderAction = "resolve_dispute"
	ActionCancel         OrderAction = "cancel"
)

func (a OrderAction) IsValid() bool {
	switch a {
	case ActionFundEscrow, ActionAccept, ActionReject, ActionRequestChanges, ActionBuyerRevises,
		ActionSubmit, ActionApprove, ActionRelease, ActionRaiseDispute, ActionResolveDispute, ActionCancel:
		return true
	}
	return false
}

func NewOrderAction(action string) (OrderAction, error) {
	a := OrderAction(action)
	if !a.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие над заказом: %q", action)
	}
	return a, nil
}

// Role обозначает сторону сделки, от имени которой выполняется действие.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsValid() || r == RoleSystem {
		return "", apperror.Newf(apperror.ErrCodeValidation, "некорректная роль: %q", role)
	}
	return r, nil
}

// Capability обозначает право, выдаваемое справочником участников.
type Capability string

const (
	CapabilityAdminister Capability = "administer"
)
