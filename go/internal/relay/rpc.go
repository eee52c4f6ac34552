package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// SessionServiceName is the fully-qualified name of the SessionService service.
	SessionServiceName = "emdrtap.session.v1.SessionService"

	// SessionServiceGetSnapshotProcedure is the fully-qualified name of the
	// SessionService's GetSnapshot RPC.
	SessionServiceGetSnapshotProcedure = "/emdrtap.session.v1.SessionService/GetSnapshot"

	sessionProtoPath = "emdrtap/session/v1/session.proto"
)

var (
	sessionServiceOnce sync.Once
	sessionServiceDesc protoreflect.ServiceDescriptor
	sessionServiceErr  error
)

// SessionServiceDescriptor registers the SessionService file descriptor with
// protoregistry.GlobalFiles on first use and returns the service. Requests and
// responses are google.protobuf.Struct, so no generated code is involved.
func SessionServiceDescriptor() (protoreflect.ServiceDescriptor, error) {
	sessionServiceOnce.Do(func() {
		if d, err := protoregistry.GlobalFiles.FindDescriptorByName(SessionServiceName); err == nil {
			if sd, ok := d.(protoreflect.ServiceDescriptor); ok {
				sessionServiceDesc = sd
				return
			}
		}

		fdp := &descriptorpb.FileDescriptorProto{
			Name:       proto.String(sessionProtoPath),
			Package:    proto.String("emdrtap.session.v1"),
			Dependency: []string{"google/protobuf/struct.proto"},
			Syntax:     proto.String("proto3"),
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("SessionService"),
				Method: []*descriptorpb.MethodDescriptorProto{{
					Name:       proto.String("GetSnapshot"),
					InputType:  proto.String(".google.protobuf.Struct"),
					OutputType: proto.String(".google.protobuf.Struct"),
					Options: &descriptorpb.MethodOptions{
						IdempotencyLevel: descriptorpb.MethodOptions_NO_SIDE_EFFECTS.Enum(),
					},
				}},
			}},
		}

		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			sessionServiceErr = fmt.Errorf("build session service descriptor: %w", err)
			return
		}
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			sessionServiceErr = fmt.Errorf("register session service descriptor: %w", err)
			return
		}
		sessionServiceDesc = fd.Services().ByName("SessionService")
	})
	return sessionServiceDesc, sessionServiceErr
}

// SnapshotRPC serves SessionService over Connect, gRPC and gRPC-Web.
type SnapshotRPC struct {
	stateProvider StateProvider
}

func NewSnapshotRPC(provider StateProvider) *SnapshotRPC {
	return &SnapshotRPC{stateProvider: provider}
}

// GetSnapshot expects {"session_id": "NNNN"} and returns the snapshot fields.
func (s *SnapshotRPC) GetSnapshot(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	raw := req.Msg.GetFields()["session_id"].GetStringValue()
	id, err := session.ParseID(raw)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	snap, err := s.stateProvider.GetSnapshot(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrNotFound):
		return nil, connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, remote.ErrMalformedSnapshot):
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to get snapshot")
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}

	out, err := structpb.NewStruct(map[string]any{
		remote.FieldID:           snap.ID,
		remote.FieldIsPlaying:    snap.IsPlaying,
		remote.FieldSpeed:        snap.Speed,
		remote.FieldDuration:     snap.Duration,
		remote.FieldCurrentImage: snap.CurrentImage,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode snapshot: %w", err))
	}
	return connect.NewResponse(out), nil
}

// Handler builds the HTTP handler for SessionService and the path to mount it on.
func (s *SnapshotRPC) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	options := []connect.HandlerOption{
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
	}
	if svc, err := SessionServiceDescriptor(); err != nil {
		log.Warn().Err(err).Msg("serving SessionService without a schema")
	} else {
		options = append(options, connect.WithSchema(svc.Methods().ByName("GetSnapshot")))
	}
	options = append(options, opts...)

	getSnapshotHandler := connect.NewUnaryHandler(
		SessionServiceGetSnapshotProcedure,
		s.GetSnapshot,
		options...,
	)
	return "/" + SessionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SessionServiceGetSnapshotProcedure:
			getSnapshotHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *SnapshotRPC) RegisterRoutes(mux *http.ServeMux) {
	path, handler := s.Handler()
	mux.Handle(path, handler)
}
