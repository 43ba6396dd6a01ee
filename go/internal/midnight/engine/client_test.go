package engine_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine/stubengine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

func newServer(t *testing.T) (*engine.Client, *stubengine.Engine) {
	t.Helper()
	stub := stubengine.New(clockwork.NewFakeClock(), nil, 11)
	path, handler := engine.NewHandler(stub)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return engine.NewClient(srv.Client(), srv.URL, time.Second), stub
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := newServer(t)

	var ps []models.Participant
	for _, name := range []string{"ana", "ben", "cy"} {
		p, err := client.Join(ctx, name)
		if err != nil {
			t.Fatalf("Expected join to succeed, got %v", err)
		}
		ps = append(ps, p)
	}
	listed, err := client.ListParticipants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 3 || !listed[0].IsAdmin {
		t.Errorf("Expected 3 participants with an admin first, got %+v", listed)
	}

	cfg := engine.DefaultSessionConfig()
	cfg.RoleSet = roles.Expand(roles.Preset(roles.PresetBeginner, len(ps)))
	if err := client.ConfigureSession(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	view, err := client.GetPrivateView(ctx, ps[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Phase != models.PhaseDeal || view.StartingRole == "" {
		t.Errorf("Expected a dealt role, got %+v", view)
	}
	v, err := client.StateVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != view.Version {
		t.Errorf("Expected version %d, got %d", view.Version, v)
	}
	pub, err := client.GetPublicState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.RoleSet) != len(cfg.RoleSet) || pub.StartingRoles != nil {
		t.Errorf("Expected role set without starting roles before results, got %+v", pub)
	}
}

func TestClientClassifiesRejection(t *testing.T) {
	ctx := context.Background()
	client, _ := newServer(t)

	err := client.SubmitVote(ctx, uuid.New(), uuid.New())
	var v *engine.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("Expected ValidationError, got %T %v", err, err)
	}
	if v.Reason != "voting is closed" {
		t.Errorf("Expected reason to cross the wire, got %q", v.Reason)
	}
	if engine.IsRetryable(err) {
		t.Errorf("Expected a rejection not to be retryable")
	}
	if msg := engine.UserMessage(err); msg != "voting is closed" {
		t.Errorf("Expected inline message, got %q", msg)
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := engine.NewClient(http.DefaultClient, url, 200*time.Millisecond)
	_, err := client.StateVersion(context.Background())
	if !engine.IsRetryable(err) {
		t.Fatalf("Expected NetworkError, got %T %v", err, err)
	}
	if msg := engine.UserMessage(err); msg == "" {
		t.Errorf("Expected a user message")
	}
}
