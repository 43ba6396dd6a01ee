package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// DefaultCallTimeout bounds each remote call.
const DefaultCallTimeout = 10 * time.Second

// Client calls a remote engine over connect.
type Client struct {
	timeout time.Duration

	stateVersion      *connect.Client[Empty, VersionResponse]
	getPrivateView    *connect.Client[ParticipantRequest, models.PrivateViewState]
	getPublicState    *connect.Client[Empty, models.PublicGameState]
	listParticipants  *connect.Client[Empty, ParticipantsResponse]
	join              *connect.Client[JoinRequest, models.Participant]
	configureSession  *connect.Client[SessionConfig, Empty]
	markReady         *connect.Client[ParticipantRequest, Empty]
	submitNightAction *connect.Client[NightAction, models.ActionResult]
	skipCurrentStep   *connect.Client[Empty, Empty]
	beginVoting       *connect.Client[Empty, Empty]
	submitVote        *connect.Client[VoteRequest, Empty]
	endVoting         *connect.Client[Empty, Empty]
	rematch           *connect.Client[Empty, Empty]
}

var _ Engine = (*Client)(nil)

// NewClient creates a client for the engine at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, timeout time.Duration, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &Client{
		timeout:           timeout,
		stateVersion:      connect.NewClient[Empty, VersionResponse](httpClient, baseURL+ProcStateVersion, opts...),
		getPrivateView:    connect.NewClient[ParticipantRequest, models.PrivateViewState](httpClient, baseURL+ProcGetPrivateView, opts...),
		getPublicState:    connect.NewClient[Empty, models.PublicGameState](httpClient, baseURL+ProcGetPublicState, opts...),
		listParticipants:  connect.NewClient[Empty, ParticipantsResponse](httpClient, baseURL+ProcListParticipants, opts...),
		join:              connect.NewClient[JoinRequest, models.Participant](httpClient, baseURL+ProcJoin, opts...),
		configureSession:  connect.NewClient[SessionConfig, Empty](httpClient, baseURL+ProcConfigureSession, opts...),
		markReady:         connect.NewClient[ParticipantRequest, Empty](httpClient, baseURL+ProcMarkReady, opts...),
		submitNightAction: connect.NewClient[NightAction, models.ActionResult](httpClient, baseURL+ProcSubmitNightAction, opts...),
		skipCurrentStep:   connect.NewClient[Empty, Empty](httpClient, baseURL+ProcSkipCurrentStep, opts...),
		beginVoting:       connect.NewClient[Empty, Empty](httpClient, baseURL+ProcBeginVoting, opts...),
		submitVote:        connect.NewClient[VoteRequest, Empty](httpClient, baseURL+ProcSubmitVote, opts...),
		endVoting:         connect.NewClient[Empty, Empty](httpClient, baseURL+ProcEndVoting, opts...),
		rematch:           connect.NewClient[Empty, Empty](httpClient, baseURL+ProcRematch, opts...),
	}
}

func call[Req, Res any](ctx context.Context, timeout time.Duration, c *connect.Client[Req, Res], op string, req *Req) (*Res, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnect(op, err)
	}
	return resp.Msg, nil
}

func (c *Client) StateVersion(ctx context.Context) (int64, error) {
	res, err := call(ctx, c.timeout, c.stateVersion, "state-version", &Empty{})
	if err != nil {
		return 0, err
	}
	return res.Version, nil
}

func (c *Client) GetPrivateView(ctx context.Context, participantID uuid.UUID) (models.PrivateViewState, error) {
	res, err := call(ctx, c.timeout, c.getPrivateView, "get-private-view", &ParticipantRequest{ParticipantID: participantID})
	if err != nil {
		return models.PrivateViewState{}, err
	}
	return *res, nil
}

func (c *Client) GetPublicState(ctx context.Context) (models.PublicGameState, error) {
	res, err := call(ctx, c.timeout, c.getPublicState, "get-public-state", &Empty{})
	if err != nil {
		return models.PublicGameState{}, err
	}
	return *res, nil
}

func (c *Client) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	res, err := call(ctx, c.timeout, c.listParticipants, "list-participants", &Empty{})
	if err != nil {
		return nil, err
	}
	return res.Participants, nil
}

func (c *Client) Join(ctx context.Context, name string) (models.Participant, error) {
	res, err := call(ctx, c.timeout, c.join, "join", &JoinRequest{Name: name})
	if err != nil {
		return models.Participant{}, err
	}
	return *res, nil
}

func (c *Client) ConfigureSession(ctx context.Context, cfg SessionConfig) error {
	_, err := call(ctx, c.timeout, c.configureSession, "configure-session", &cfg)
	return err
}

func (c *Client) MarkReady(ctx context.Context, participantID uuid.UUID) error {
	_, err := call(ctx, c.timeout, c.markReady, "mark-ready", &ParticipantRequest{ParticipantID: participantID})
	return err
}

func (c *Client) SubmitNightAction(ctx context.Context, action NightAction) (models.ActionResult, error) {
	res, err := call(ctx, c.timeout, c.submitNightAction, "submit-night-action", &action)
	if err != nil {
		return models.ActionResult{}, err
	}
	return *res, nil
}

func (c *Client) SkipCurrentStep(ctx context.Context) error {
	_, err := call(ctx, c.timeout, c.skipCurrentStep, "skip-current-step", &Empty{})
	return err
}

func (c *Client) BeginVoting(ctx context.Context) error {
	_, err := call(ctx, c.timeout, c.beginVoting, "begin-voting", &Empty{})
	return err
}

func (c *Client) SubmitVote(ctx context.Context, participantID, target uuid.UUID) error {
	_, err := call(ctx, c.timeout, c.submitVote, "submit-vote", &VoteRequest{ParticipantID: participantID, TargetID: target})
	return err
}

func (c *Client) EndVoting(ctx context.Context) error {
	_, err := call(ctx, c.timeout, c.endVoting, "end-voting", &Empty{})
	return err
}

func (c *Client) Rematch(ctx context.Context) error {
	_, err := call(ctx, c.timeout, c.rematch, "rematch", &Empty{})
	return err
}
