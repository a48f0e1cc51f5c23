package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Renderer собирает тему и текст письма по виду уведомления.
type Renderer struct {
	baseURL   string
	templates map[gateway.NotificationKind]messageTemplate
}

var sources = map[gateway.NotificationKind][2]string{
	gateway.NotifyProposalReceived: {
		`Новое предложение: {{.title}}`,
		`{{.from}} предлагает вам сделку «{{.title}}» на сумму ₦{{.total}}.
Открыть предложение: {{link "proposals" .proposal_id}}`,
	},
	gateway.NotifyProposalAccepted: {
		`Предложение принято: {{.title}}`,
		`Ваше предложение «{{.title}}» принято. Сделка создаётся.
{{link "proposals" .proposal_id}}`,
	},
	gateway.NotifyProposalDeclined: {
		`Предложение отклонено: {{.title}}`,
		`Ваше предложение «{{.title}}» отклонено второй стороной.`,
	},
	gateway.NotifyFundDeal: {
		`Оплатите сделку: {{.title}}`,
		`Сделка «{{.title}}» ждёт оплаты. К оплате: ₦{{.funding_amount}}.
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyDealFunded: {
		`Сделка оплачена: {{.title}}`,
		`Средства по сделке «{{.title}}» получены и удерживаются на эскроу.{{with .milestone_title}}
Первый этап «{{.}}» запущен.{{end}}
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyMilestoneSubmitted: {
		`Этап сдан: {{.milestone_title}}`,
		`Продавец сдал этап «{{.milestone_title}}» по сделке «{{.title}}».{{with .auto_approve_at}}
Если не ответить, этап будет принят автоматически {{.}}.{{end}}
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyRevisionRequested: {
		`Нужна доработка: {{.milestone_title}}`,
		`Покупатель попросил доработать этап «{{.milestone_title}}».{{with .reason}}
Комментарий: {{.}}{{end}}
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyMilestoneApproved: {
		`Этап принят: {{.milestone_title}}`,
		`Этап «{{.milestone_title}}» по сделке «{{.title}}» принят.{{with .amount}} К выплате: ₦{{.}}.{{end}}
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyMilestoneFunded: {
		`Следующий этап запущен: {{.milestone_title}}`,
		`Этап «{{.milestone_title}}» по сделке «{{.title}}» профинансирован, можно приступать.
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyDealCompleted: {
		`Сделка завершена: {{.title}}`,
		`Все этапы сделки «{{.title}}» приняты. Сделка закрыта.
{{link "deals" .deal_id}}`,
	},
	gateway.NotifyDisputeOpened: {
		`Открыт спор: {{.title}}`,
		`По сделке «{{.title}}» открыт спор ({{.category}}).
Причина: {{.reason}}
Сделка заморожена до решения администратора. {{link "disputes" .dispute_id}}`,
	},
	gateway.NotifyDisputeResolved: {
		`Спор решён: {{.title}}`,
		`Спор по сделке «{{.title}}» решён: {{.resolution}}{{with .amount}}, сумма ₦{{.}}{{end}}.{{with .notes}}
Комментарий: {{.}}{{end}}
{{link "disputes" .dispute_id}}`,
	},
}

func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{baseURL: baseURL, templates: make(map[gateway.NotificationKind]messageTemplate, len(sources))}
	funcs := template.FuncMap{"link": r.link}

	for kind, src := range sources {
		subject, err := template.New(string(kind) + ".subject").Funcs(funcs).Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("notify: шаблон темы %s: %w", kind, err)
		}
		body, err := template.New(string(kind) + ".body").Funcs(funcs).Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("notify: шаблон письма %s: %w", kind, err)
		}
		r.templates[kind] = messageTemplate{subject: subject, body: body}
	}
	return r, nil
}

func (r *Renderer) Render(n gateway.Notification) (subject, body string, err error) {
	tpl, ok := r.templates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("notify: нет шаблона для %q", n.Kind)
	}
	data := n.Context
	if data == nil {
		data = map[string]any{}
	}

	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("notify: %s: %w", n.Kind, err)
	}
	if err := tpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("notify: %s: %w", n.Kind, err)
	}
	return sb.String(), bb.String(), nil
}

func (r *Renderer) link(section string, id any) string {
	if id == nil {
		return r.baseURL
	}
	return fmt.Sprintf("%s/%s/%v", r.baseURL, section, id)
}
