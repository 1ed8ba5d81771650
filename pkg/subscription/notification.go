package subscription

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Notification is a provider webhook payload. The provider delivers it as
// JSON or as a form-encoded body depending on the integration.
type Notification struct {
	Type NotificationType `json:"type"`
	Data NotificationData `json:"data"`

	raw []byte
}

// NotificationData carries the payment outcome and the subscription
// references of a notification.
type NotificationData struct {
	Payment       PaymentInfo       `json:"payment"`
	Subscriptions []SubscriptionRef `json:"subscriptions"`
}

// PaymentInfo is the payment node of a notification.
type PaymentInfo struct {
	Status PaymentStatus `json:"status"`
}

// PaymentStatus holds the provider status code. The provider is
// inconsistent about sending it as a JSON number or string, so both are
// accepted.
type PaymentStatus struct {
	Code string `json:"code"`
	Text string `json:"text,omitempty"`
}

// UnmarshalJSON accepts the status code as either a string or a number.
func (p *PaymentStatus) UnmarshalJSON(data []byte) error {
	var flexible struct {
		Code json.Number `json:"code"`
		Text string      `json:"text"`
	}
	if err := json.Unmarshal(data, &flexible); err != nil {
		return err
	}
	p.Code = flexible.Code.String()
	p.Text = flexible.Text
	return nil
}

// SubscriptionRef pairs the provider UIDs carried by a notification.
type SubscriptionRef struct {
	Subscription string `json:"subscription"`
	Subscriber   string `json:"subscriber"`
}

// ParseNotification decodes a JSON webhook body.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	n.raw = body
	return &n, nil
}

// ParseNotificationForm decodes a form-encoded webhook body using the
// provider's bracketed key notation, e.g. data[payment][status][code].
func ParseNotificationForm(values url.Values) (*Notification, error) {
	n := &Notification{
		Type: NotificationType(values.Get("type")),
	}
	n.Data.Payment.Status.Code = values.Get("data[payment][status][code]")
	n.Data.Payment.Status.Text = values.Get("data[payment][status][text]")

	for i := 0; ; i++ {
		prefix := "data[subscriptions][" + strconv.Itoa(i) + "]"
		sub := values.Get(prefix + "[subscription]")
		scr := values.Get(prefix + "[subscriber]")
		if sub == "" && scr == "" {
			break
		}
		n.Data.Subscriptions = append(n.Data.Subscriptions, SubscriptionRef{
			Subscription: sub,
			Subscriber:   scr,
		})
	}

	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	n.raw = raw
	return n, nil
}

// StatusCode returns the numeric payment status code.
func (n *Notification) StatusCode() (int, error) {
	code := strings.TrimSpace(n.Data.Payment.Status.Code)
	if code == "" {
		return 0, fmt.Errorf("%w: missing payment status", ErrInvalidNotification)
	}
	v, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("%w: bad payment status %q", ErrInvalidNotification, code)
	}
	return v, nil
}

// Ref returns the first subscription reference of the payload.
func (n *Notification) Ref() (SubscriptionRef, bool) {
	if len(n.Data.Subscriptions) == 0 {
		return SubscriptionRef{}, false
	}
	return n.Data.Subscriptions[0], true
}

// Raw returns the notification payload as delivered (or re-encoded for form
// bodies). It is stored as registration data and in the execution log.
func (n *Notification) Raw() []byte {
	if n.raw != nil {
		return n.raw
	}
	raw, _ := json.Marshal(n)
	return raw
}
