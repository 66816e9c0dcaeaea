package schema

// Roles accepted by the token endpoint.
const (
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// TokenRequest is the body of POST /api/token.json.
type TokenRequest struct {
	Channel    string        `json:"channel"`
	Role       string        `json:"role"`
	UID        FlexString    `json:"uid"`
	ExpireTime ExpireSeconds `json:"expireTime"`
}

func (r *TokenRequest) Validate() error {
	if r.Channel == "" {
		return required("channel")
	}
	if r.Role != RolePublisher && r.Role != RoleSubscriber {
		return &ValidationError{Field: "role", Message: "role is incorrect"}
	}
	if r.UID == "" {
		return required("uid")
	}
	if r.ExpireTime == 0 {
		return required("expireTime")
	}
	return nil
}

// RecordingStartRequest is the body of POST /api/recording/start.json. UID
// overrides the configured recording bot uid.
type RecordingStartRequest struct {
	Channel string     `json:"channel"`
	UID     FlexString `json:"uid"`
}

func (r *RecordingStartRequest) Validate() error {
	if r.Channel == "" {
		return required("channel")
	}
	return nil
}

// RecordingStopRequest is the body of POST /api/recording/stop.json.
type RecordingStopRequest struct {
	Channel    string     `json:"channel"`
	UID        FlexString `json:"uid"`
	SID        string     `json:"sid"`
	ResourceID string     `json:"resourceId"`
}

func (r *RecordingStopRequest) Validate() error {
	switch {
	case r.Channel == "":
		return required("channel")
	case r.UID == "":
		return required("uid")
	case r.SID == "":
		return required("sid")
	case r.ResourceID == "":
		return required("resourceId")
	}
	return nil
}

// RecordingQueryRequest is the body of POST /api/recording/query.json.
// Channel is optional; the job handle alone identifies the recording.
type RecordingQueryRequest struct {
	Channel    string `json:"channel"`
	SID        string `json:"sid"`
	ResourceID string `json:"resourceId"`
}

func (r *RecordingQueryRequest) Validate() error {
	if r.SID == "" {
		return required("sid")
	}
	if r.ResourceID == "" {
		return required("resourceId")
	}
	return nil
}

// TranscriptionStartRequest is the body of POST /api/transcription/start.json.
type TranscriptionStartRequest struct {
	Channel string `json:"channel"`
}

func (r *TranscriptionStartRequest) Validate() error {
	if r.Channel == "" {
		return required("channel")
	}
	return nil
}

// TranscriptionJobRequest is the body of the transcription stop and query endpoints.
type TranscriptionJobRequest struct {
	Channel      string `json:"channel"`
	TaskID       string `json:"taskId"`
	BuilderToken string `json:"builderToken"`
}

func (r *TranscriptionJobRequest) Validate() error {
	if r.TaskID == "" {
		return required("taskId")
	}
	if r.BuilderToken == "" {
		return required("builderToken")
	}
	return nil
}

// LegacyStartRecordingRequest is the body of POST /start-recording/{channel}.json.
type LegacyStartRecordingRequest struct {
	Channel string     `json:"-"`
	UID     FlexString `json:"uid"`
}

func (r *LegacyStartRecordingRequest) Validate() error {
	if r.Channel == "" {
		return required("channel")
	}
	if r.UID == "" {
		return required("uid")
	}
	return nil
}

// LegacyStopRecordingRequest is the body of POST /stop-recording/{channel}.json.
type LegacyStopRecordingRequest struct {
	Channel    string     `json:"-"`
	UID        FlexString `json:"uid"`
	SID        string     `json:"sid"`
	ResourceID string     `json:"resourceId"`
}

func (r *LegacyStopRecordingRequest) Validate() error {
	stop := RecordingStopRequest{Channel: r.Channel, UID: r.UID, SID: r.SID, ResourceID: r.ResourceID}
	return stop.Validate()
}
