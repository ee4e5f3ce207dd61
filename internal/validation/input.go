package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MinOrderTitleLength       = 3
	MaxOrderTitleLength       = 200
	MinOrderDescriptionLength = 10
	MaxOrderDescriptionLength = 5000
	MaxDeliverablesCount      = 50
	MaxDeliverableLength      = 500
	MaxExternalLinkLength     = 500
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateOrderTitle проверяет заголовок заказа.
func ValidateOrderTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок заказа обязателен")
	}
	return ValidateLength("заголовок заказа", title, MinOrderTitleLength, MaxOrderTitleLength)
}

// ValidateOrderDescription проверяет описание заказа.
func ValidateOrderDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание заказа обязательно")
	}
	return ValidateLength("описание заказа", description, MinOrderDescriptionLength, MaxOrderDescriptionLength)
}

// ValidateDeliverables проверяет список результатов работы.
func ValidateDeliverables(deliverables []string) error {
	if len(deliverables) == 0 {
		return fmt.Errorf("нужен хотя бы один результат работы")
	}
	if len(deliverables) > MaxDeliverablesCount {
		return fmt.Errorf("количество результатов не может превышать %d", MaxDeliverablesCount)
	}

	seen := make(map[string]bool)
	for _, d := range deliverables {
		d = strings.TrimSpace(d)
		if d == "" {
			return fmt.Errorf("результат работы не может быть пустым")
		}
		if utf8.RuneCountInString(d) > MaxDeliverableLength {
			return fmt.Errorf("результат работы не может быть длиннее %d символов", MaxDeliverableLength)
		}
		key := strings.ToLower(d)
		if seen[key] {
			return fmt.Errorf("результат '%s' указан дважды", d)
		}
		seen[key] = true
	}
	return nil
}

// ValidateExternalLink проверяет необязательную внешнюю ссылку.
func ValidateExternalLink(fieldName, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}
	if err := ValidateLength(fieldName, link, 0, MaxExternalLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%s: некорректный формат URL", fieldName)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s должна начинаться с http:// или https://", fieldName)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s должна содержать доменное имя", fieldName)
	}
	return nil
}
