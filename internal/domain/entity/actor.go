package entity

import (
	"strings"

	"github.com/google/uuid"
)

// SystemAutoApprove имя исполнителя для автоматического одобрения по таймеру.
const SystemAutoApprove = "system-auto-approve"

const RoleAdmin = "admin"

// Actor пользователь (или система), от имени которого выполняется операция.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
	System bool
}

func SystemActor() Actor {
	return Actor{System: true}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Name используется в журналах и в поле ApprovedBy.
func (a Actor) Name() string {
	if a.System {
		return SystemAutoApprove
	}
	return a.UserID.String()
}

func sameEmail(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
