package valueobject

import "github.com/ignatzorin/escrow-backend/internal/pkg/apperror"

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "OPEN"
	DisputeStatusUnderReview DisputeStatus = "UNDER_REVIEW"
	DisputeStatusResponded   DisputeStatus = "RESPONDED"
	DisputeStatusMediation   DisputeStatus = "MEDIATION"
	DisputeStatusResolved    DisputeStatus = "RESOLVED"
	DisputeStatusClosed      DisputeStatus = "CLOSED"
)

// disputeRank задаёт линейный порядок статусов спора.
var disputeRank = map[DisputeStatus]int{
	DisputeStatusOpen:        0,
	DisputeStatusUnderReview: 1,
	DisputeStatusResponded:   2,
	DisputeStatusMediation:   3,
	DisputeStatusResolved:    4,
	DisputeStatusClosed:      5,
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeRank[s]
	return ok
}

// IsActive сообщает, что спор ещё не разрешён и блокирует открытие нового.
func (s DisputeStatus) IsActive() bool {
	return s.IsValid() && s != DisputeStatusResolved && s != DisputeStatusClosed
}

// Precedes сообщает, что next лежит строго дальше по жизненному циклу.
func (s DisputeStatus) Precedes(next DisputeStatus) bool {
	from, okFrom := disputeRank[s]
	to, okTo := disputeRank[next]
	return okFrom && okTo && from < to
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "некорректный статус спора: %q", status)
	}
	return s, nil
}

type DisputeReason string

const (
	ReasonNotDelivered       DisputeReason = "NOT_DELIVERED"
	ReasonNotAsDescribed     DisputeReason = "NOT_AS_DESCRIBED"
	ReasonQualityIssue       DisputeReason = "QUALITY_ISSUE"
	ReasonLateDelivery       DisputeReason = "LATE_DELIVERY"
	ReasonIncompleteWork     DisputeReason = "INCOMPLETE_WORK"
	ReasonCommunicationIssue DisputeReason = "COMMUNICATION_ISSUE"
	ReasonPaymentIssue       DisputeReason = "PAYMENT_ISSUE"
	ReasonFraud              DisputeReason = "FRAUD"
	ReasonOther              DisputeReason = "OTHER"
)

func (r DisputeReason) IsValid() bool {
	switch r {
	case ReasonNotDelivered, ReasonNotAsDescribed, ReasonQualityIssue, ReasonLateDelivery, ReasonIncompleteWork,
		ReasonCommunicationIssue, ReasonPaymentIssue, ReasonFraud, ReasonOther:
		return true
	}
	return false
}

// Priority выводит приоритет рассмотрения из причины спора.
func (r DisputeReason) Priority() DisputePriority {
	switch r {
	case ReasonFraud:
		return PriorityUrgent
	case ReasonNotDelivered, ReasonPaymentIssue:
		return PriorityHigh
	case ReasonCommunicationIssue, ReasonOther:
		return PriorityLow
	}
	return PriorityNormal
}

func NewDisputeReason(reason string) (DisputeReason, error) {
	r := DisputeReason(reason)
	if !r.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестная причина спора: %q", reason)
	}
	return r, nil
}

type DisputePriority string

const (
	PriorityLow    DisputePriority = "low"
	PriorityNormal DisputePriority = "normal"
	PriorityHigh   DisputePriority = "high"
	PriorityUrgent DisputePriority = "urgent"
)

type DisputeResolution string

const (
	ResolutionRefundBuyer     DisputeResolution = "REFUND_BUYER"
	ResolutionReleaseToSeller DisputeResolution = "RELEASE_TO_SELLER"
	ResolutionPartialRefund   DisputeResolution = "PARTIAL_REFUND"
	ResolutionContinueWork    DisputeResolution = "CONTINUE_WORK"
	ResolutionCancelOrder     DisputeResolution = "CANCEL_ORDER"
)

func (r DisputeResolution) IsValid() bool {
	_, ok := resolutionTargets[r]
	return ok
}

var resolutionTargets = map[DisputeResolution]OrderStatus{
	ResolutionRefundBuyer:     OrderStatusRefunded,
	ResolutionReleaseToSeller: OrderStatusReleased,
	ResolutionPartialRefund:   OrderStatusRefunded,
	ResolutionContinueWork:    OrderStatusInProgress,
	ResolutionCancelOrder:     OrderStatusCancelled,
}

// OrderStatus возвращает статус, в который переходит заказ после решения.
func (r DisputeResolution) OrderStatus() (OrderStatus, bool) {
	s, ok := resolutionTargets[r]
	return s, ok
}

func NewDisputeResolution(resolution string) (DisputeResolution, error) {
	r := DisputeResolution(resolution)
	if !r.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестное решение по спору: %q", resolution)
	}
	return r, nil
}

// DisputeAction обозначает шаг продвижения спора.
type DisputeAction string

const (
	DisputeActionStartReview DisputeAction = "start_review"
	DisputeActionRespond     DisputeAction = "respond"
	DisputeActionMediate     DisputeAction = "mediate"
	DisputeActionResolve     DisputeAction = "resolve"
	DisputeActionClose       DisputeAction = "close"
)

var disputeActionTargets = map[DisputeAction]DisputeStatus{
	DisputeActionStartReview: DisputeStatusUnderReview,
	DisputeActionRespond:     DisputeStatusResponded,
	DisputeActionMediate:     DisputeStatusMediation,
	DisputeActionResolve:     DisputeStatusResolved,
	DisputeActionClose:       DisputeStatusClosed,
}

// Target возвращает статус, к которому ведёт действие.
func (a DisputeAction) Target() (DisputeStatus, bool) {
	s, ok := disputeActionTargets[a]
	return s, ok
}

func NewDisputeAction(action string) (DisputeAction, error) {
	a := DisputeAction(action)
	if _, ok := disputeActionTargets[a]; !ok {
		return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие над спором: %q", action)
	}
	return a, nil
}
