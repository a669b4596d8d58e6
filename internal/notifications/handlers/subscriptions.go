package handlers

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"caseflow/internal/types"
)

// Subscription is one party's contact preferences on a case.
type Subscription struct {
	Party      string
	Email      string
	Mobile     string
	EmailOptIn bool
	SMSOptIn   bool
}

// subscriptionsOf reads the subscriptions object, e.g.
//
//	{"appellantSubscription": {"email": "...", "subscribeEmail": "Yes"}}
//
// Parties come back in key order. A party is included only if it opted in to
// at least one channel with a usable address.
func subscriptionsOf(data types.CaseData) []Subscription {
	raw, err := jsonOf(data)
	if err != nil {
		return nil
	}

	var out []Subscription
	gjson.GetBytes(raw, types.FieldSubscriptions).ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		sub := Subscription{
			Party:  strings.TrimSuffix(key.String(), "Subscription"),
			Email:  strings.TrimSpace(value.Get("email").String()),
			Mobile: strings.TrimSpace(value.Get("mobile").String()),
		}
		sub.EmailOptIn = yes(value.Get("subscribeEmail")) && sub.Email != ""
		sub.SMSOptIn = yes(value.Get("subscribeSms")) && sub.Mobile != ""
		if sub.EmailOptIn || sub.SMSOptIn {
			out = append(out, sub)
		}
		return true
	})
	return out
}

// The case platform encodes booleans as "Yes"/"No".
func yes(v gjson.Result) bool {
	return strings.EqualFold(v.String(), "yes") || v.Type == gjson.True
}

func jsonOf(data types.CaseData) ([]byte, error) {
	return json.Marshal(data)
}
