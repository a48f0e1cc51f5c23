package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinProjectTitleLength       = 3
	MaxProjectTitleLength       = 200
	MaxProjectDescriptionLength = 5000
	MaxMilestones               = 20
	MinRevisionReasonLength     = 10
	MaxRevisionReasonLength     = 2000
	MinDisputeReasonLength      = 20
	MaxDisputeReasonLength      = 5000
	MaxSubmissionMessageLength  = 5000
	MaxAttachments              = 10
	MaxResolutionNotesLength    = 2000
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(strings.TrimSpace(value))
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateAttachments проверяет список ссылок на файлы.
func ValidateAttachments(files []string) error {
	if len(files) > MaxAttachments {
		return fmt.Errorf("можно приложить не более %d файлов", MaxAttachments)
	}
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("ссылка на файл не может быть пустой")
		}
	}
	return nil
}
