package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// CountdownServiceName is the fully-qualified name of the countdown RPC
	// service.
	CountdownServiceName = "bosswatch.v1.CountdownService"

	CountdownServiceGetSnapshotProcedure = "/bosswatch.v1.CountdownService/GetSnapshot"
	CountdownServiceResumeProcedure      = "/bosswatch.v1.CountdownService/Resume"
	CountdownServiceRefreshProcedure     = "/bosswatch.v1.CountdownService/Refresh"
)

// CountdownService exposes the countdown over Connect. Messages are
// well-known types: requests are Empty, responses are the snapshot as a
// Struct with the same field names as the JSON API.
type CountdownService struct {
	state *StateHandler
}

func NewCountdownService(state *StateHandler) *CountdownService {
	return &CountdownService{state: state}
}

func (s *CountdownService) GetSnapshot(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	snap, err := s.state.CurrentSnapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(snap)
}

func (s *CountdownService) Resume(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	if err := s.state.engine.Resume(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(s.state.engine.Snapshot())
}

func (s *CountdownService) Refresh(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	if err := s.state.engine.RefreshNow(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(s.state.engine.Snapshot())
}

// Handler returns the path prefix and handler to mount on a mux.
func (s *CountdownService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(CountdownServiceGetSnapshotProcedure,
		connect.NewUnaryHandler(CountdownServiceGetSnapshotProcedure, s.GetSnapshot, opts...))
	mux.Handle(CountdownServiceResumeProcedure,
		connect.NewUnaryHandler(CountdownServiceResumeProcedure, s.Resume, opts...))
	mux.Handle(CountdownServiceRefreshProcedure,
		connect.NewUnaryHandler(CountdownServiceRefreshProcedure, s.Refresh, opts...))
	return "/" + CountdownServiceName + "/", mux
}

func snapshotResponse(snap worldboss.Snapshot) (*connect.Response[structpb.Struct], error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, worldboss.ErrEngineStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
