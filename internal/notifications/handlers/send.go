package handlers

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"caseflow/internal/dispatch"
	"caseflow/internal/external"
	"caseflow/internal/notifications/core"
	"caseflow/internal/types"
)

// SendHandler delivers the templated notification for the event to every
// subscribed party through the provider.
type SendHandler struct {
	provider  external.NotificationProvider
	templates Templates
	logger    types.Logger
}

func NewSendHandler(provider external.NotificationProvider, templates Templates, logger types.Logger) *SendHandler {
	return &SendHandler{provider: provider, templates: templates, logger: logger}
}

func (h *SendHandler) Name() string                { return "notification-send" }
func (h *SendHandler) Priority() dispatch.Priority { return dispatch.PriorityLate }

func (h *SendHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	return phase == types.PhaseNotification && h.templates.Has(cb.EventType)
}

// Handle sends one message per subscribed party and channel, stopping at the
// first provider failure. The failure is returned as a fatal error so the
// retry coordinator can classify it.
func (h *SendHandler) Handle(ctx context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	result := dispatch.NewResult(cb.Data())

	subs := subscriptionsOf(cb.Data())
	if len(subs) == 0 {
		result.AddWarning("no party is subscribed to notifications for " + string(cb.EventType))
		return result, nil
	}

	personalisation := h.personalisation(cb)
	for _, sub := range subs {
		for _, target := range h.targets(cb.EventType, sub) {
			req := external.NotificationRequest{
				TemplateID:      target.templateID,
				Channel:         target.channel,
				Recipient:       target.recipient,
				Personalisation: personalisation,
				Reference:       fmt.Sprintf("%d/%s/%s/%s", cb.CaseID(), cb.EventType, sub.Party, target.channel),
			}
			receipt, err := h.provider.Send(ctx, req)
			if err != nil {
				h.logger.Warn("notification send failed",
					"case_id", cb.CaseID(),
					"party", sub.Party,
					"channel", string(target.channel),
					"recipient", target.redacted,
					"error", err,
				)
				return nil, err
			}
			core.RecordReceipt(ctx, receipt.ID)
			h.logger.Info("notification sent",
				"case_id", cb.CaseID(),
				"party", sub.Party,
				"channel", string(target.channel),
				"recipient", target.redacted,
				"provider_ref", receipt.ID,
			)
		}
	}
	return result, nil
}

type sendTarget struct {
	channel    external.Channel
	templateID string
	recipient  string
	redacted   string
}

func (h *SendHandler) targets(event types.EventType, sub Subscription) []sendTarget {
	var out []sendTarget
	if id, ok := h.templates.Resolve(event, external.ChannelEmail); ok && sub.EmailOptIn {
		out = append(out, sendTarget{external.ChannelEmail, id, sub.Email, redactEmail(sub.Email)})
	}
	if id, ok := h.templates.Resolve(event, external.ChannelSMS); ok && sub.SMSOptIn {
		out = append(out, sendTarget{external.ChannelSMS, id, sub.Mobile, redactMobile(sub.Mobile)})
	}
	return out
}

func (h *SendHandler) personalisation(cb *types.Callback) map[string]string {
	data := cb.Data()
	out := map[string]string{
		"case_reference": data.String(types.FieldCaseReference),
		"event":          string(cb.EventType),
	}
	if raw, err := jsonOf(data); err == nil {
		name := gjson.GetBytes(raw, types.FieldAppellantName)
		if full := joinName(name); full != "" {
			out["appellant_name"] = full
		}
		if mrn := gjson.GetBytes(raw, types.FieldMRNDate).String(); mrn != "" {
			out["mrn_date"] = mrn
		}
	}
	return out
}

func joinName(name gjson.Result) string {
	if !name.IsObject() {
		return name.String()
	}
	first := name.Get("firstName").String()
	last := name.Get("lastName").String()
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
