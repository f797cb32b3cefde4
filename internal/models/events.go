package models

// CallStarted is published when a call has been looked up and registered.
type CallStarted struct {
	EventType    string `json:"eventType"`
	CallSid      string `json:"callSid"`
	CallerPhone  string `json:"callerPhone"`
	CalledNumber string `json:"calledNumber"`
	CompanyName  string `json:"companyName"`
	Timestamp    int64  `json:"timestamp"`
}

// CallTranscript is published for each transcript fragment the agent emits,
// for either side of the conversation.
type CallTranscript struct {
	EventType string `json:"eventType"`
	CallSid   string `json:"callSid"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Timestamp int64  `json:"timestamp"`
}

// CallCompleted is published after the post-call handoff has run.
type CallCompleted struct {
	EventType         string `json:"eventType"`
	CallSid           string `json:"callSid"`
	CompanyName       string `json:"companyName"`
	AppointmentBooked bool   `json:"appointmentBooked"`
	DurationSeconds   int64  `json:"durationSeconds"`
	Timestamp         int64  `json:"timestamp"`
}
