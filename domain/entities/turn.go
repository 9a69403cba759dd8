package entities

// Turn is one user utterance and the model reply it produced
type Turn struct {
	ID      int    `json:"id"`
	User    string `json:"user"`
	Model   string `json:"model"`
	IsFinal bool   `json:"isFinal"`
}
