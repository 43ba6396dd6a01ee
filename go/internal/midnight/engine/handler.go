package engine

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// NewHandler serves eng over connect. It returns the path prefix to mount
// the handler at.
func NewHandler(eng Engine, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	mux := http.NewServeMux()

	unary(mux, ProcStateVersion, func(ctx context.Context, _ *Empty) (*VersionResponse, error) {
		v, err := eng.StateVersion(ctx)
		return &VersionResponse{Version: v}, err
	}, opts)
	unary(mux, ProcGetPrivateView, func(ctx context.Context, req *ParticipantRequest) (*models.PrivateViewState, error) {
		v, err := eng.GetPrivateView(ctx, req.ParticipantID)
		return &v, err
	}, opts)
	unary(mux, ProcGetPublicState, func(ctx context.Context, _ *Empty) (*models.PublicGameState, error) {
		s, err := eng.GetPublicState(ctx)
		return &s, err
	}, opts)
	unary(mux, ProcListParticipants, func(ctx context.Context, _ *Empty) (*ParticipantsResponse, error) {
		ps, err := eng.ListParticipants(ctx)
		return &ParticipantsResponse{Participants: ps}, err
	}, opts)
	unary(mux, ProcJoin, func(ctx context.Context, req *JoinRequest) (*models.Participant, error) {
		p, err := eng.Join(ctx, req.Name)
		return &p, err
	}, opts)
	unary(mux, ProcConfigureSession, func(ctx context.Context, req *SessionConfig) (*Empty, error) {
		return &Empty{}, eng.ConfigureSession(ctx, *req)
	}, opts)
	unary(mux, ProcMarkReady, func(ctx context.Context, req *ParticipantRequest) (*Empty, error) {
		return &Empty{}, eng.MarkReady(ctx, req.ParticipantID)
	}, opts)
	unary(mux, ProcSubmitNightAction, func(ctx context.Context, req *NightAction) (*models.ActionResult, error) {
		r, err := eng.SubmitNightAction(ctx, *req)
		return &r, err
	}, opts)
	unary(mux, ProcSkipCurrentStep, func(ctx context.Context, _ *Empty) (*Empty, error) {
		return &Empty{}, eng.SkipCurrentStep(ctx)
	}, opts)
	unary(mux, ProcBeginVoting, func(ctx context.Context, _ *Empty) (*Empty, error) {
		return &Empty{}, eng.BeginVoting(ctx)
	}, opts)
	unary(mux, ProcSubmitVote, func(ctx context.Context, req *VoteRequest) (*Empty, error) {
		return &Empty{}, eng.SubmitVote(ctx, req.ParticipantID, req.TargetID)
	}, opts)
	unary(mux, ProcEndVoting, func(ctx context.Context, _ *Empty) (*Empty, error) {
		return &Empty{}, eng.EndVoting(ctx)
	}, opts)
	unary(mux, ProcRematch, func(ctx context.Context, _ *Empty) (*Empty, error) {
		return &Empty{}, eng.Rematch(ctx)
	}, opts)

	return "/" + ServiceName + "/", mux
}

func unary[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *Req) (*Res, error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			log.Debug().Err(err).Str("procedure", procedure).Msg("engine call failed")
			return nil, toConnect(err)
		}
		return connect.NewResponse(res), nil
	}, opts...))
}
