package models

import "time"

// IngestionRun summarises one published batch. Results themselves are not stored.
type IngestionRun struct {
	BatchID    string    `json:"batchId"`
	ItemCount  int       `json:"itemCount"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

type QuestionRecord struct {
	ID         int64     `json:"id"`
	SessionKey string    `json:"sessionKey"`
	BatchID    string    `json:"batchId"`
	ItemID     int64     `json:"itemId"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
}
