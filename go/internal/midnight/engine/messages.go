package engine

import (
	"github.com/google/uuid"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// ServiceName is the connect service path segment.
const ServiceName = "midnight.v1.EngineService"

const (
	ProcStateVersion      = "/" + ServiceName + "/StateVersion"
	ProcGetPrivateView    = "/" + ServiceName + "/GetPrivateView"
	ProcGetPublicState    = "/" + ServiceName + "/GetPublicState"
	ProcListParticipants  = "/" + ServiceName + "/ListParticipants"
	ProcJoin              = "/" + ServiceName + "/Join"
	ProcConfigureSession  = "/" + ServiceName + "/ConfigureSession"
	ProcMarkReady         = "/" + ServiceName + "/MarkReady"
	ProcSubmitNightAction = "/" + ServiceName + "/SubmitNightAction"
	ProcSkipCurrentStep   = "/" + ServiceName + "/SkipCurrentStep"
	ProcBeginVoting       = "/" + ServiceName + "/BeginVoting"
	ProcSubmitVote        = "/" + ServiceName + "/SubmitVote"
	ProcEndVoting         = "/" + ServiceName + "/EndVoting"
	ProcRematch           = "/" + ServiceName + "/Rematch"
)

// Empty is a message with no fields.
type Empty struct{}

type VersionResponse struct {
	Version int64 `json:"state_version"`
}

type ParticipantRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
}

type ParticipantsResponse struct {
	Participants []models.Participant `json:"participants"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type VoteRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	TargetID      uuid.UUID `json:"target_id"`
}
