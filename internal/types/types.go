package types

type Alert struct {
	ID        int64   `json:"id"`
	ChatID    int64   `json:"chat_id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Currency  string  `json:"currency"`
	Triggered bool    `json:"triggered"`
	CreatedAt string  `json:"created_at"`
}
