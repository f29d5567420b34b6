package api

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

type SessionQuery struct {
	Layout string `schema:"layout"`
	Wait   bool   `schema:"wait"`
}

type Result struct {
	Label      string   `json:"label"` // label returned by the prediction service, may be empty
	Confidence *float64 `json:"confidence,omitempty"`
	Uncertain  bool     `json:"uncertain"`
	Breed      Breed    `json:"breed"`
}

type Session struct {
	SessionID      string  `json:"session_id"`
	State          string  `json:"state"`
	Generation     uint64  `json:"generation"`
	FileName       string  `json:"file_name,omitempty"`
	FileSize       int64   `json:"file_size,omitempty"`
	PreviewURL     string  `json:"preview_url,omitempty"`
	Analyzing      bool    `json:"analyzing"`
	AutoSubmit     bool    `json:"auto_submit"`
	Layout         string  `json:"layout"`
	ReferenceImage string  `json:"reference_image,omitempty"`
	Result         *Result `json:"result,omitempty"`
	Error          string  `json:"error,omitempty"`
}
