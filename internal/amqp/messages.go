package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage is published when an expense pushes a user's
// current-month spending past their critical threshold. The worker owns the
// notification delivery; the message carries the snapshot it needs.
type BudgetAlertMessage struct {
	UserID            int64     `json:"user_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	MonthlyLimitCents int64     `json:"monthly_limit_cents"`
	SpentCents        int64     `json:"spent_cents"`
	PercentUsed       float64   `json:"percent_used"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID int64, username, email string, limitCents, spentCents int64, percent float64, status string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:            userID,
		Username:          username,
		Email:             email,
		MonthlyLimitCents: limitCents,
		SpentCents:        spentCents,
		PercentUsed:       percent,
		Status:            status,
		Timestamp:         time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
