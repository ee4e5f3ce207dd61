package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govalues/decimal"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const DefaultCurrency = "USD"

// Money хранит сумму в конкретной валюте как десятичное число без потери точности.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNeg() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return Money{}, apperror.Newf(apperror.ErrCodeValidation, "некорректный код валюты: %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// ParseMoney разбирает сумму из строки вида "149.90".
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.Parse(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректная сумма")
	}
	return NewMoney(d, currency)
}

// NewPrice требует строго положительную сумму.
func NewPrice(amount, currency string) (Money, error) {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		return Money{}, err
	}
	if !m.Amount.IsPos() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
	}
	return m, nil
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPos()
}

// Less сравнивает суммы одной валюты.
func (m Money) Less(other Money) bool {
	return m.Amount.Cmp(other.Amount) < 0
}

func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.String())
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount.String(), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
